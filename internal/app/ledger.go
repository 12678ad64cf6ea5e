package app

import (
	"quizchain/internal/domain"
)

// BlockEvent signals that one operation was applied as a new block.
// Consumers re-issue their queries on receipt; a query made after the event
// is guaranteed to reflect the block's effects.
type BlockEvent struct {
	Height    uint64           `json:"height"`
	AppliedAt domain.Timestamp `json:"appliedAt"`
}

// apply runs one operation handler to completion under the write lock. The
// handler validates and mutates in one critical section, so check-then-act
// sequences (one attempt per user, sequential quiz ids) cannot race. Only a
// successful handler produces a block.
func (e *Engine) apply(fn func(now domain.Timestamp) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := domain.TimestampFromTime(e.clock())
	if err := fn(now); err != nil {
		return err
	}
	e.height++
	e.broadcastLocked(BlockEvent{Height: e.height, AppliedAt: now})
	return nil
}

// BlockHeight returns the number of applied blocks.
func (e *Engine) BlockHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.height
}

// Subscribe returns a channel receiving an event per applied block. The
// caller must invoke the returned cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan BlockEvent, func()) {
	ch := make(chan BlockEvent, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked(event BlockEvent) {
	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow subscriber never
			// blocks the apply loop; it only needs the newest signal.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
