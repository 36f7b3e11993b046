package progress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options configures a Board.
type Options struct {
	Policy Policy
	// MaxActive bounds how many items tick at once; the rest stay queued.
	// Zero means no bound.
	MaxActive int
	Listener  Listener
	// BaseContext is the parent of every item context. Cancelling it stops
	// all tickers, as Dispose does.
	BaseContext context.Context
	// Name tags log lines of this board.
	Name string
}

// Board is an ordered store of simulated items. Each submitted item owns a
// ticker goroutine that drives it through the policy until it reaches a
// terminal stage or is removed.
type Board struct {
	mu        sync.Mutex
	name      string
	policy    Policy
	listener  Listener
	entries   []*entry
	index     map[string]*entry
	slots     chan struct{}
	baseCtx   context.Context
	cancelAll context.CancelFunc
	workersWG sync.WaitGroup
	disposed  bool
}

type entry struct {
	item     Item
	phase    int
	workDone bool
	cancel   context.CancelFunc
}

func (e *entry) state() State {
	return State{Stage: e.item.Stage, Progress: e.item.Progress, Phase: e.phase, WorkDone: e.workDone}
}

// NewBoard validates the policy and returns an empty board ready for use.
func NewBoard(opts Options) (*Board, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	parent := opts.BaseContext
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	b := &Board{
		name:      opts.Name,
		policy:    opts.Policy,
		listener:  opts.Listener,
		index:     make(map[string]*entry),
		baseCtx:   ctx,
		cancelAll: cancel,
	}
	if opts.MaxActive > 0 {
		b.slots = make(chan struct{}, opts.MaxActive)
	}
	return b, nil
}

// Policy returns the policy the board drives its items with.
func (b *Board) Policy() Policy {
	return b.policy
}

// Submit appends a queued item and starts its ticker.
func (b *Board) Submit(spec ItemSpec, work Work) (Item, error) {
	label := strings.TrimSpace(spec.Label)
	if label == "" {
		return Item{}, ErrEmptyLabel
	}

	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return Item{}, ErrBoardDisposed
	}
	now := time.Now()
	ctx, cancel := context.WithCancel(b.baseCtx)
	e := &entry{
		item: Item{
			ID:        uuid.NewString(),
			Label:     label,
			SizeClass: ClassifySize(spec.SizeBytes),
			SizeBytes: spec.SizeBytes,
			Stage:     StageQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		workDone: work == nil,
		cancel:   cancel,
	}
	b.entries = append(b.entries, e)
	b.index[e.item.ID] = e
	b.emit(e.item, StageQueued)
	b.workersWG.Add(1)
	snapshot := e.item
	b.mu.Unlock()

	log.Debug().Str("board", b.name).Str("item_id", snapshot.ID).Str("label", snapshot.Label).Msg("item submitted")

	go func() {
		defer b.workersWG.Done()
		b.run(ctx, snapshot.ID, work)
	}()
	return snapshot, nil
}

// Get returns a snapshot of the item with the given id.
func (b *Board) Get(id string) (Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok {
		return Item{}, false
	}
	return e.item, true
}

// List returns snapshots of all items in insertion order.
func (b *Board) List() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]Item, 0, len(b.entries))
	for _, e := range b.entries {
		items = append(items, e.item)
	}
	return items
}

// Len returns the number of items on the board.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Active reports how many items currently hold a ticking slot.
// It is always zero for an unbounded board.
func (b *Board) Active() int {
	return len(b.slots)
}

// Update changes one item, leaving the others untouched. Changes that would
// break the lifecycle (stage jumps, progress going down or past 100, edits to
// a terminal item) are rejected without modifying anything.
func (b *Board) Update(id string, patch Patch) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	if e.item.Stage.Terminal() {
		return e.item, fmt.Errorf("%w: %s", ErrItemFrozen, e.item.Stage)
	}

	label := e.item.Label
	if patch.Label != nil {
		label = strings.TrimSpace(*patch.Label)
		if label == "" {
			return e.item, ErrEmptyLabel
		}
	}
	next := e.state()
	if patch.Progress != nil {
		p := *patch.Progress
		if p < 0 || p > maxProgress {
			return e.item, fmt.Errorf("%w: %d", ErrProgressRange, p)
		}
		if p < next.Progress {
			return e.item, fmt.Errorf("%w: %d < %d", ErrProgressRegression, p, next.Progress)
		}
		next.Progress = p
	}
	reason := e.item.Error
	if patch.Stage != nil && *patch.Stage != next.Stage {
		to := *patch.Stage
		if !CanTransition(next.Stage, to) {
			return e.item, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, next.Stage, to)
		}
		switch to {
		case StageCompleted:
			next = complete(next)
		case StageError:
			reason = failureReason(patch.Reason)
			next.Stage = to
		default:
			next.Stage = to
			next.Phase = b.phaseOf(to)
		}
	}

	e.item.Label = label
	e.item.Error = reason
	b.apply(e, next)
	return e.item, nil
}

// Fail moves a running item to StageError with the given reason, freezing
// its progress. Other items are not affected.
func (b *Board) Fail(id, reason string) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	if e.item.Stage.Terminal() {
		return e.item, fmt.Errorf("%w: %s", ErrItemFrozen, e.item.Stage)
	}
	b.failLocked(e, reason)
	return e.item, nil
}

// Remove cancels the item's ticker and deletes it. No event for the item is
// delivered once Remove has returned. It reports whether the item existed.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.index[id]
	if !ok {
		return false
	}
	e.cancel()
	delete(b.index, id)
	for i, candidate := range b.entries {
		if candidate == e {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	log.Debug().Str("board", b.name).Str("item_id", id).Msg("item removed")
	return true
}

// Dispose cancels every ticker, drops all items and rejects further
// submissions. It blocks until the ticker goroutines exit or ctx is done and
// reports whether they all exited.
func (b *Board) Dispose(ctx context.Context) bool {
	b.mu.Lock()
	if !b.disposed {
		b.disposed = true
		for _, e := range b.entries {
			e.cancel()
		}
		b.entries = nil
		b.index = make(map[string]*entry)
		b.cancelAll()
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// apply stores the next state and notifies the listener. Callers hold b.mu.
func (b *Board) apply(e *entry, next State) {
	prev := e.item.Stage
	e.phase = next.Phase
	e.workDone = next.WorkDone
	e.item.Stage = next.Stage
	e.item.Progress = next.Progress
	e.item.UpdatedAt = time.Now()
	if next.Stage.Terminal() && !prev.Terminal() {
		completedAt := e.item.UpdatedAt
		e.item.CompletedAt = &completedAt
		e.cancel()
	}
	b.emit(e.item, prev)
}

func (b *Board) failLocked(e *entry, reason string) {
	e.item.Error = failureReason(reason)
	next := e.state()
	next.Stage = StageError
	b.apply(e, next)
}

func (b *Board) emit(item Item, prev Stage) {
	if item.Stage != prev {
		switch item.Stage {
		case StageCompleted:
			log.Info().Str("board", b.name).Str("item_id", item.ID).Str("label", item.Label).Msg("item completed")
		case StageError:
			log.Warn().Str("board", b.name).Str("item_id", item.ID).Str("reason", item.Error).Int("progress", item.Progress).Msg("item failed")
		default:
			log.Debug().Str("board", b.name).Str("item_id", item.ID).Str("from", string(prev)).Str("to", string(item.Stage)).Msg("stage changed")
		}
	}
	if b.listener == nil {
		return
	}
	b.listener.OnProgress(item.ID, item.Progress, item.Stage)
	if item.Stage == prev {
		return
	}
	switch item.Stage {
	case StageCompleted:
		b.listener.OnComplete(item.ID)
	case StageError:
		b.listener.OnError(item.ID, item.Error)
	}
}

func (b *Board) phaseOf(stage Stage) int {
	for i, ph := range b.policy.Phases {
		if ph.Stage == stage {
			return i
		}
	}
	return 0
}

func failureReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "simulated failure"
	}
	return reason
}
