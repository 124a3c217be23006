package enginepool

import (
	"context"
	"errors"
	"testing"

	"github.com/parkbanksia/tourney/internal/enginedriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFactory(launched *int) Factory {
	return func(ctx context.Context, name string) (*enginedriver.Driver, error) {
		if launched != nil {
			*launched++
		}
		return enginedriver.New(name, "", nil, nil), nil
	}
}

func TestNewRequiresFactory(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestCreateEngineLeasesAndReturns(t *testing.T) {
	launched := 0
	p, err := New(Config{Factory: fakeFactory(&launched), PerEngineCapacity: 2})
	require.NoError(t, err)

	ctx := context.Background()
	d, err := p.CreateEngine(ctx, "stockfish")
	require.NoError(t, err)
	assert.Equal(t, 1, launched)

	p.ReturnPlayer(d, nil)

	// a second acquire should reuse the parked driver, not relaunch
	d2, err := p.CreateEngine(ctx, "stockfish")
	require.NoError(t, err)
	assert.Equal(t, 1, launched)
	assert.Same(t, d, d2)
}

func TestCreateEngineKeyedByName(t *testing.T) {
	launched := 0
	p, err := New(Config{Factory: fakeFactory(&launched), PerEngineCapacity: 2})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.CreateEngine(ctx, "engine-a")
	require.NoError(t, err)
	_, err = p.CreateEngine(ctx, "engine-b")
	require.NoError(t, err)
	assert.Equal(t, 2, launched)
}

func TestCreateEngineBlocksAtCapacityUntilReturn(t *testing.T) {
	launched := 0
	p, err := New(Config{Factory: fakeFactory(&launched), PerEngineCapacity: 1})
	require.NoError(t, err)

	ctx := context.Background()
	d1, err := p.CreateEngine(ctx, "engine-a")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		d2, err := p.CreateEngine(ctx, "engine-a")
		require.NoError(t, err)
		assert.Same(t, d1, d2)
		close(done)
	}()

	p.ReturnPlayer(d1, nil)
	<-done
	assert.Equal(t, 1, launched)
}

func TestReturnPlayerDiscardsOnError(t *testing.T) {
	launched := 0
	p, err := New(Config{Factory: fakeFactory(&launched), PerEngineCapacity: 1})
	require.NoError(t, err)

	ctx := context.Background()
	d1, err := p.CreateEngine(ctx, "engine-a")
	require.NoError(t, err)

	p.ReturnPlayer(d1, errors.New("crashed"))

	d2, err := p.CreateEngine(ctx, "engine-a")
	require.NoError(t, err)
	assert.NotSame(t, d1, d2)
	assert.Equal(t, 2, launched)
}

func TestFactoryErrorPropagates(t *testing.T) {
	p, err := New(Config{Factory: func(ctx context.Context, name string) (*enginedriver.Driver, error) {
		return nil, errors.New("launch failed")
	}})
	require.NoError(t, err)

	_, err = p.CreateEngine(context.Background(), "broken")
	assert.Error(t, err)
}

func TestClosePrunesIdleDrivers(t *testing.T) {
	launched := 0
	p, err := New(Config{Factory: fakeFactory(&launched), PerEngineCapacity: 2})
	require.NoError(t, err)

	ctx := context.Background()
	d, err := p.CreateEngine(ctx, "engine-a")
	require.NoError(t, err)
	p.ReturnPlayer(d, nil)

	require.NoError(t, p.Close())
}
