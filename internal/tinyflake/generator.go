// Package tinyflake allocates 40-bit, time-ordered identifiers:
// 30 bits of seconds since a custom epoch, an 8-bit in-second sequence and a 2-bit node id.
//
// Node ids are not coordinated here. Two running generators sharing a node id
// can emit the same identifier; assigning distinct ids is an operational concern.
package tinyflake

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxWait bounds how long Next blocks on sequence overflow or clock rollback.
const DefaultMaxWait = 2 * time.Second

var (
	ErrInvalidNodeID    = errors.New("invalid node id")
	ErrEpochAhead       = errors.New("epoch is ahead of the clock")
	ErrSequenceOverflow = errors.New("sequence exhausted for the current second")
	ErrClockRollback    = errors.New("clock moved backwards")
	ErrEpochExhausted   = errors.New("timestamp field exhausted, epoch must be reconfigured")
)

// RollbackPolicy selects what Next does when the clock moves backwards.
type RollbackPolicy int

const (
	// RollbackWait blocks until the clock catches up, bounded by MaxWait.
	RollbackWait RollbackPolicy = iota
	// RollbackFail returns ErrClockRollback immediately.
	RollbackFail
)

// Settings configures a Generator.
type Settings struct {
	NodeID   uint8
	Epoch    time.Time
	MaxWait  time.Duration
	Rollback RollbackPolicy
	Clock    Clock
}

// Generator hands out unique IDs for one node. It is safe for concurrent use.
type Generator struct {
	nodeID   uint8
	epoch    int64
	maxWait  time.Duration
	rollback RollbackPolicy
	clock    Clock

	mu          sync.Mutex
	started     bool
	lastElapsed int64
	sequence    uint8
}

// NewGenerator validates the settings and returns a ready generator.
func NewGenerator(s Settings) (*Generator, error) {
	if s.NodeID > MaxNodeID {
		return nil, fmt.Errorf("%w: %d, expected 0..%d", ErrInvalidNodeID, s.NodeID, MaxNodeID)
	}

	if s.Clock == nil {
		s.Clock = SystemClock{}
	}

	if s.MaxWait <= 0 {
		s.MaxWait = DefaultMaxWait
	}

	now := s.Clock.Now()
	if s.Epoch.After(now) {
		return nil, fmt.Errorf("%w: epoch=%s now=%s", ErrEpochAhead, s.Epoch.UTC(), now.UTC())
	}

	return &Generator{
		nodeID:   s.NodeID,
		epoch:    s.Epoch.Unix(),
		maxWait:  s.MaxWait,
		rollback: s.Rollback,
		clock:    s.Clock,
	}, nil
}

// NodeID returns the node id stamped into every generated ID.
func (g *Generator) NodeID() uint8 {
	return g.nodeID
}

// Next returns the next ID. It may block for up to MaxWait when the current
// second's sequence is exhausted or the clock has moved backwards; the lock
// guarding the counters is released while waiting.
func (g *Generator) Next() (ID, error) {
	deadline := g.clock.Now().Add(g.maxWait)

	for {
		id, wakeAt, err := g.tryNext()
		if err != nil {
			return 0, err
		}

		if wakeAt.IsZero() {
			return id, nil
		}

		now := g.clock.Now()
		if wakeAt.After(deadline) {
			if g.isRollback(now) {
				return 0, fmt.Errorf("%w: waited past %s", ErrClockRollback, g.maxWait)
			}

			return 0, fmt.Errorf("%w: next second is beyond the %s wait bound", ErrSequenceOverflow, g.maxWait)
		}

		if d := wakeAt.Sub(now); d > 0 {
			g.clock.Sleep(d)
		}
	}
}

// tryNext performs one locked read-modify-write. A non-zero wakeAt asks the
// caller to sleep until then and retry.
func (g *Generator) tryNext() (ID, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	elapsed := g.clock.Now().Unix() - g.epoch
	if elapsed > MaxTimestamp {
		return 0, time.Time{}, fmt.Errorf("%w: %d seconds since epoch", ErrEpochExhausted, elapsed)
	}

	switch {
	case elapsed < 0:
		return 0, time.Time{}, fmt.Errorf("%w: clock is before the epoch", ErrClockRollback)
	case !g.started || elapsed > g.lastElapsed:
		g.started = true
		g.lastElapsed = elapsed
		g.sequence = 0
	case elapsed < g.lastElapsed:
		if g.rollback == RollbackFail {
			return 0, time.Time{}, fmt.Errorf("%w: by %ds", ErrClockRollback, g.lastElapsed-elapsed)
		}

		return 0, time.Unix(g.epoch+g.lastElapsed, 0), nil
	case g.sequence < MaxSequence:
		g.sequence++
	default:
		return 0, time.Unix(g.epoch+g.lastElapsed+1, 0), nil
	}

	return newID(uint32(g.lastElapsed), g.sequence, g.nodeID), time.Time{}, nil
}

func (g *Generator) isRollback(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return now.Unix()-g.epoch < g.lastElapsed
}
