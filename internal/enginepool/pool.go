// Package enginepool implements a lease/return pool of engine drivers
// keyed by configuration name, using a bucket-with-capacity-channel design
// re-keyed from an option tuple (Threads/SkillLevel/HashMB/MultiPV/Elo) to
// the engine configuration *name*, since a tournament's engines are named
// participants rather than interchangeable strength presets.
package enginepool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/parkbanksia/tourney/internal/enginedriver"
)

// Factory launches a fresh, handshaken driver for the named engine
// configuration. Supplied by the caller (the tournament manager, backed by
// internal/registry) so this package stays ignorant of how a name maps to a
// binary path and arguments.
type Factory func(ctx context.Context, name string) (*enginedriver.Driver, error)

// Config controls the pool's per-name capacity.
type Config struct {
	Factory           Factory
	PerEngineCapacity int
}

// Pool leases and parks engine drivers. A leased driver has a single owner
// (one Game side) until returned; concurrent access is serialized with a
// lock.
type Pool struct {
	factory  Factory
	capacity int

	mu      sync.Mutex
	buckets map[string]*bucket
	leased  map[*enginedriver.Driver]*bucket
}

// New constructs a pool. capacity <= 0 uses a CPU-scaled default.
func New(cfg Config) (*Pool, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("engine pool requires a factory")
	}
	capacity := cfg.PerEngineCapacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	return &Pool{
		factory:  cfg.Factory,
		capacity: capacity,
		buckets:  make(map[string]*bucket),
		leased:   make(map[*enginedriver.Driver]*bucket),
	}, nil
}

// CreateEngine leases a driver for name, launching one if the bucket has
// spare capacity and no idle driver is available. It blocks until a driver
// is available or ctx is cancelled.
func (p *Pool) CreateEngine(ctx context.Context, name string) (*enginedriver.Driver, error) {
	b := p.getBucket(name)

	for {
		select {
		case d := <-b.idle:
			if d == nil || d.State() == enginedriver.StateStopped {
				b.decrement()
				continue
			}
			p.track(d, b)
			return d, nil
		default:
		}

		d, err := b.create(ctx, p.factory, name)
		if err == nil {
			p.track(d, b)
			return d, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case d := <-b.idle:
			if d == nil || d.State() == enginedriver.StateStopped {
				b.decrement()
				continue
			}
			p.track(d, b)
			return d, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReturnPlayer parks a driver for reuse, or discards it if crashed
// (err != nil, or its state is no longer safe to hand out again).
func (p *Pool) ReturnPlayer(d *enginedriver.Driver, err error) {
	if d == nil {
		return
	}
	p.mu.Lock()
	b, ok := p.leased[d]
	if !ok {
		p.mu.Unlock()
		_ = d.Close()
		return
	}
	delete(p.leased, d)
	p.mu.Unlock()

	if err != nil || !d.IsSafeToDeattach() {
		b.discard(d)
		return
	}
	if !b.put(d) {
		b.discard(d)
	}
}

// Tick prunes idle drivers that crashed while parked, mirroring the
// scheduling loop's "tick the player pool" step. Engine I/O itself
// runs on each driver's own goroutine, not on this call.
func (p *Pool) Tick() {
	p.mu.Lock()
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	for _, b := range buckets {
		b.pruneStopped()
	}
}

// Close shuts down every idle driver in every bucket. Leased drivers are the
// caller's responsibility (a live Game should return them before shutdown).
func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.leased = make(map[*enginedriver.Driver]*bucket)
	p.mu.Unlock()

	var errs []error
	for _, b := range buckets {
		for {
			select {
			case d := <-b.idle:
				if d != nil {
					if err := d.Close(); err != nil {
						errs = append(errs, err)
					}
				}
				b.decrement()
			default:
				goto nextBucket
			}
		}
	nextBucket:
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (p *Pool) track(d *enginedriver.Driver, b *bucket) {
	p.mu.Lock()
	p.leased[d] = b
	p.mu.Unlock()
}

func (p *Pool) getBucket(name string) *bucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[name]
	if !ok {
		b = newBucket(p.capacity)
		p.buckets[name] = b
	}
	return b
}

type bucket struct {
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *enginedriver.Driver
}

var errBucketAtCapacity = errors.New("engine pool bucket at capacity")

func newBucket(capacity int) *bucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &bucket{capacity: capacity, idle: make(chan *enginedriver.Driver, capacity)}
}

func (b *bucket) create(ctx context.Context, factory Factory, name string) (*enginedriver.Driver, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	d, err := factory(ctx, name)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return d, nil
}

func (b *bucket) put(d *enginedriver.Driver) bool {
	select {
	case b.idle <- d:
		return true
	default:
		return false
	}
}

func (b *bucket) discard(d *enginedriver.Driver) {
	if d != nil {
		_ = d.Close()
	}
	b.decrement()
}

func (b *bucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func (b *bucket) pruneStopped() {
	for {
		select {
		case d := <-b.idle:
			if d == nil {
				continue
			}
			if d.State() == enginedriver.StateStopped {
				b.decrement()
				continue
			}
			if !b.put(d) {
				b.discard(d)
			}
			return
		default:
			return
		}
	}
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 8 {
		return 8
	}
	return cpu
}
