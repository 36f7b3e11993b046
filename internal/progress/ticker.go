package progress

import (
	"context"
	"time"
)

// run is the ticker goroutine of one item. It waits for an active slot,
// starts the item and then advances it every period until the item is
// terminal, removed, or the board is disposed.
func (b *Board) run(ctx context.Context, id string, work Work) {
	if b.slots != nil {
		select {
		case b.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-b.slots }()
	}

	if !b.start(id) {
		return
	}

	var timeout <-chan time.Time
	if b.policy.Timeout > 0 {
		timer := time.NewTimer(b.policy.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var workDone chan error
	if work != nil {
		workDone = make(chan error, 1)
		b.workersWG.Add(1)
		go func() {
			defer b.workersWG.Done()
			workDone <- work(ctx)
		}()
	}

	ticker := time.NewTicker(b.policy.Period)
	defer ticker.Stop()
	tick := ticker.C

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			b.failIfRunning(id, ErrTimedOut.Error())
			return
		case err := <-workDone:
			workDone = nil
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				b.failIfRunning(id, err.Error())
				return
			}
			if !b.finish(id) {
				return
			}
		case <-tick:
			running, ticking := b.tick(id)
			if !running {
				return
			}
			if !ticking {
				ticker.Stop()
				tick = nil
			}
		}
	}
}

// start moves a queued item into its first phase and reports whether the
// item is still running.
func (b *Board) start(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok {
		return false
	}
	if e.item.Stage == StageQueued {
		b.apply(e, b.policy.Start(e.state()))
	}
	return !e.item.Stage.Terminal()
}

// tick applies one policy step. running is false once the item is gone or
// terminal; ticking is false while it holds at the last ceiling.
func (b *Board) tick(id string) (running, ticking bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok || e.item.Stage.Terminal() {
		return false, false
	}
	next, keep := b.policy.Advance(e.state())
	b.apply(e, next)
	return !next.Stage.Terminal(), keep
}

// finish records that the item's work returned and reports whether the item
// is still running.
func (b *Board) finish(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok || e.item.Stage.Terminal() {
		return false
	}
	next := b.policy.Finish(e.state())
	if next.Stage != e.item.Stage || next.Progress != e.item.Progress {
		b.apply(e, next)
	} else {
		e.workDone = true
	}
	return !next.Stage.Terminal()
}

func (b *Board) failIfRunning(id, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok || e.item.Stage.Terminal() {
		return
	}
	b.failLocked(e, reason)
}

// Advance applies one tick to the item immediately, outside its ticker,
// and returns the resulting snapshot.
func (b *Board) Advance(id string) (Item, bool) {
	b.tick(id)
	return b.Get(id)
}
