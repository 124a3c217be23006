// Package timecontrol implements the per-side clock arithmetic that governs
// move legality in the time dimension, modeled after Banksia's
// GameTimeController (game/time.cpp in the original C++ source).
package timecontrol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mode selects which of the four clock disciplines governs a game.
type Mode int

const (
	ModeNone Mode = iota
	ModeInfinite
	ModeDepth
	ModeMoveTime
	ModeStandard
)

var modeNames = [...]string{"none", "infinite", "depth", "movetime", "standard"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "none"
	}
	return modeNames[m]
}

func modeFromString(s string) Mode {
	for i, name := range modeNames {
		if name == s {
			return Mode(i)
		}
	}
	return ModeNone
}

// Side indexes the two players of a game: 0 = white, 1 = black.
type Side int

const (
	White Side = 0
	Black Side = 1
)

// Controller is the per-game, mutable clock: two sides' remaining time plus
// the configuration (mode, base time, increment, margin) that drives how it
// is updated after every move.
//
// Controller is not safe for concurrent use; callers serialize access to it
// the same way the Game serializes board and clock mutation under its
// criticalMutex.
type Controller struct {
	Mode             Mode
	MovesPerControl  int     // "moves"; 0 means the whole game shares one control
	BaseSeconds      float64 // "time"
	IncrementSeconds float64 // "increment"
	MarginSeconds    float64 // "margin", absorbs IPC jitter
	Depth            int     // depth mode only

	leftMs      [2]int64
	startThink  time.Time
	lastElapsed time.Duration
}

// Setup replaces the configuration wholesale, mirroring
// TimeController::setup. val is moves (standard) or depth (depth mode); t0 is
// base seconds (standard/movetime); t1 is increment (standard); t2 is margin
// (standard).
func (c *Controller) Setup(mode Mode, val int, t0, t1, t2 float64) {
	c.Mode = mode
	switch mode {
	case ModeInfinite:
	case ModeDepth:
		c.Depth = val
	case ModeMoveTime:
		c.BaseSeconds = t0
	case ModeStandard:
		c.MovesPerControl = val
		c.BaseSeconds = t0
		c.IncrementSeconds = t1
		c.MarginSeconds = t2
	}
}

// IsValid reports whether the current configuration is self-consistent,
// mirroring TimeController::isValid.
func (c *Controller) IsValid() bool {
	switch c.Mode {
	case ModeInfinite:
		return true
	case ModeDepth:
		return c.Depth > 0
	case ModeMoveTime:
		return c.BaseSeconds > 0
	case ModeStandard:
		return c.MovesPerControl >= 0 && c.BaseSeconds > 0 && c.IncrementSeconds >= 0 && c.MarginSeconds >= 0
	default:
		return false
	}
}

// SetupClocksBeforeThinking resets both clocks at the start of the game and
// tops them up at a moves-per-control boundary, then starts the per-move
// stopwatch. movesPlayed is the half-move count already on the board.
func (c *Controller) SetupClocksBeforeThinking(movesPlayed int) {
	if c.Mode == ModeMoveTime || movesPlayed == 0 {
		ms := int64(c.BaseSeconds * 1000)
		c.leftMs[White] = ms
		c.leftMs[Black] = ms
	} else if c.Mode == ModeStandard && c.MovesPerControl > 0 {
		fullCnt := movesPlayed / 2
		if fullCnt > 0 && fullCnt%c.MovesPerControl == 0 {
			side := sideToMove(movesPlayed)
			c.leftMs[side] += int64(c.BaseSeconds * 1000)
		}
	}
	c.startThink = now()
}

// UpdateClockAfterMove subtracts the elapsed time from the side that just
// moved, adds the increment, and tops the clock up again if this move closed
// out a moves-per-control boundary. The result is clamped at zero; callers
// that need to know whether the clamp triggered should compare against
// TimeLeft before and after.
func (c *Controller) UpdateClockAfterMove(elapsedSec float64, side Side, movesPlayed int) {
	if c.Mode != ModeStandard {
		return
	}
	deltaMs := int64((c.IncrementSeconds - elapsedSec) * 1000)
	left := c.leftMs[side] + deltaMs
	if left < 0 {
		left = 0
	}
	c.leftMs[side] = left

	if c.MovesPerControl == 0 {
		return
	}
	fullCnt := (movesPlayed + 1) / 2
	if fullCnt%c.MovesPerControl == 0 {
		c.leftMs[side] += int64(c.BaseSeconds * 1000)
	}
}

// MoveTimeConsumed returns the wall-clock time elapsed since the last call to
// SetupClocksBeforeThinking, in seconds.
func (c *Controller) MoveTimeConsumed() float64 {
	elapsed := now().Sub(c.startThink)
	c.lastElapsed = elapsed
	return elapsed.Seconds()
}

// IsTimeOver reports whether side has exceeded its budget, consulting the
// live stopwatch. Always false outside standard/movetime modes.
func (c *Controller) IsTimeOver(side Side) bool {
	if c.Mode != ModeMoveTime && c.Mode != ModeStandard {
		return false
	}
	consumed := c.MoveTimeConsumed()
	marginMs := c.MarginSeconds * 1000
	return consumed*1000 >= float64(c.leftMs[side])+marginMs
}

// TimeLeft returns the remaining budget for side, in milliseconds.
func (c *Controller) TimeLeft(side Side) int64 {
	return c.leftMs[side]
}

func sideToMove(movesPlayed int) Side {
	if movesPlayed%2 == 0 {
		return White
	}
	return Black
}

// now is a seam so tests can stub wall-clock behavior; production always
// uses time.Now.
var now = time.Now

func (c *Controller) String() string {
	switch c.Mode {
	case ModeInfinite:
		return "infinite"
	case ModeDepth:
		return fmt.Sprintf("depth:%d", c.Depth)
	case ModeMoveTime:
		return fmt.Sprintf("movetime:%g", c.BaseSeconds)
	case ModeStandard:
		return fmt.Sprintf("%d/%g:%g", c.MovesPerControl, c.BaseSeconds, c.IncrementSeconds)
	default:
		return "none"
	}
}

// jsonDoc is the on-disk shape used both for the ledger snapshot and for
// standalone round-trip tests.
type jsonDoc struct {
	Mode      string  `json:"mode"`
	Moves     int     `json:"moves,omitempty"`
	Time      float64 `json:"time,omitempty"`
	Increment float64 `json:"increment,omitempty"`
	Margin    float64 `json:"margin,omitempty"`
	Depth     int     `json:"depth,omitempty"`
}

// Load populates the controller from its JSON config representation,
// mirroring TimeController::load's per-mode field requirements.
func (c *Controller) Load(data []byte) error {
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode time control: %w", err)
	}

	mode := modeFromString(doc.Mode)
	switch mode {
	case ModeInfinite:
		c.Mode = mode
		return nil
	case ModeDepth:
		if doc.Depth <= 0 {
			return fmt.Errorf("time control depth mode requires depth > 0")
		}
		c.Mode = mode
		c.Depth = doc.Depth
		return nil
	case ModeMoveTime:
		if doc.Time <= 0 {
			return fmt.Errorf("time control movetime mode requires time > 0")
		}
		c.Mode = mode
		c.BaseSeconds = doc.Time
		return nil
	case ModeStandard:
		if doc.Time <= 0 || doc.Increment < 0 || doc.Margin < 0 || doc.Moves < 0 {
			return fmt.Errorf("time control standard mode has invalid time/increment/margin/moves")
		}
		c.Mode = mode
		c.MovesPerControl = doc.Moves
		c.BaseSeconds = doc.Time
		c.IncrementSeconds = doc.Increment
		c.MarginSeconds = doc.Margin
		return nil
	default:
		return fmt.Errorf("unknown time control mode %q", doc.Mode)
	}
}

// SaveToJson serializes the configuration (not the live clocks) the way
// TimeController::saveToJson does.
func (c *Controller) SaveToJson() ([]byte, error) {
	doc := jsonDoc{Mode: c.Mode.String()}
	switch c.Mode {
	case ModeDepth:
		doc.Depth = c.Depth
	case ModeMoveTime:
		doc.Time = c.BaseSeconds
	case ModeStandard:
		doc.Moves = c.MovesPerControl
		doc.Time = c.BaseSeconds
		doc.Increment = c.IncrementSeconds
		doc.Margin = c.MarginSeconds
	}
	return json.Marshal(doc)
}
