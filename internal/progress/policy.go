package progress

import (
	"fmt"
	"time"
)

const (
	DefaultStepSize         = 10
	DefaultUploadPeriod     = 500 * time.Millisecond
	DefaultGenerationPeriod = 300 * time.Millisecond
	DefaultTimeout          = 10 * time.Second

	maxProgress = 100
)

// Phase is one leg of the simulated pipeline: the item reports Stage until
// its progress reaches Ceiling.
type Phase struct {
	Stage   Stage `json:"stage" yaml:"stage"`
	Ceiling int   `json:"ceiling" yaml:"ceiling"`
}

// Policy maps ticks to progress and stage changes.
// Progress is shared by all phases and never resets at a phase boundary.
type Policy struct {
	StepSize int
	Period   time.Duration
	Phases   []Phase
	// Timeout fails an item that has not finished in time. Zero disables it.
	Timeout time.Duration
}

// DefaultUploadPolicy ticks an upload to 100 while uploading, flips it to
// processing, and completes it on the following tick.
func DefaultUploadPolicy() Policy {
	return Policy{
		StepSize: DefaultStepSize,
		Period:   DefaultUploadPeriod,
		Phases: []Phase{
			{Stage: StageUploading, Ceiling: maxProgress},
			{Stage: StageProcessing, Ceiling: maxProgress},
		},
		Timeout: DefaultTimeout,
	}
}

// DefaultGenerationPolicy holds at 90 until the generation work returns.
func DefaultGenerationPolicy() Policy {
	return Policy{
		StepSize: DefaultStepSize,
		Period:   DefaultGenerationPeriod,
		Phases: []Phase{
			{Stage: StageUploading, Ceiling: 30},
			{Stage: StageProcessing, Ceiling: 90},
		},
		Timeout: DefaultTimeout,
	}
}

// Validate checks that the policy can only drive items along the legal path.
func (p Policy) Validate() error {
	if p.StepSize < 1 || p.StepSize > maxProgress {
		return fmt.Errorf("%w: step size %d out of range 1..100", ErrInvalidPolicy, p.StepSize)
	}
	if p.Period <= 0 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidPolicy)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidPolicy)
	}
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: no phases", ErrInvalidPolicy)
	}
	if p.Phases[0].Stage != StageUploading {
		return fmt.Errorf("%w: first phase must be %s", ErrInvalidPolicy, StageUploading)
	}
	if p.Phases[len(p.Phases)-1].Stage != StageProcessing {
		return fmt.Errorf("%w: last phase must be %s", ErrInvalidPolicy, StageProcessing)
	}
	prev := Phase{Stage: StageUploading}
	for i, ph := range p.Phases {
		if ph.Stage != StageUploading && ph.Stage != StageProcessing {
			return fmt.Errorf("%w: phase %d has stage %q", ErrInvalidPolicy, i, ph.Stage)
		}
		if order[ph.Stage] < order[prev.Stage] {
			return fmt.Errorf("%w: phase %d goes back to %s", ErrInvalidPolicy, i, ph.Stage)
		}
		if ph.Ceiling < 1 || ph.Ceiling > maxProgress {
			return fmt.Errorf("%w: phase %d ceiling %d out of range 1..100", ErrInvalidPolicy, i, ph.Ceiling)
		}
		if ph.Ceiling < prev.Ceiling {
			return fmt.Errorf("%w: phase %d ceiling %d below previous %d", ErrInvalidPolicy, i, ph.Ceiling, prev.Ceiling)
		}
		prev = ph
	}
	return nil
}

// State is the part of an item the policy reads and writes.
type State struct {
	Stage    Stage
	Progress int
	Phase    int
	WorkDone bool
}

// Start moves a queued item into its first phase.
func (p Policy) Start(s State) State {
	if s.Stage != StageQueued {
		return s
	}
	s.Phase = 0
	s.Stage = p.Phases[0].Stage
	return s
}

// Advance applies one tick. The boolean result reports whether the ticker
// should keep firing: it is false once the item is terminal or is holding at
// the last ceiling waiting for its work.
func (p Policy) Advance(s State) (State, bool) {
	if s.Stage.Terminal() {
		return s, false
	}
	if s.Stage == StageQueued {
		return s, true
	}
	phase := p.Phases[s.Phase]
	next := s
	next.Progress = max(min(s.Progress+p.StepSize, phase.Ceiling), s.Progress)
	if next.Progress < phase.Ceiling {
		return next, true
	}
	if s.Phase < len(p.Phases)-1 {
		next.Phase++
		next.Stage = p.Phases[next.Phase].Stage
		return next, true
	}
	if next.WorkDone {
		return complete(next), false
	}
	return next, false
}

// Finish records that the work behind an item has returned. An item already
// holding at its last ceiling completes at once.
func (p Policy) Finish(s State) State {
	s.WorkDone = true
	if s.Stage.Terminal() || s.Stage == StageQueued {
		return s
	}
	if s.Phase == len(p.Phases)-1 && s.Progress >= p.Phases[s.Phase].Ceiling {
		return complete(s)
	}
	return s
}

func complete(s State) State {
	s.Progress = maxProgress
	s.Stage = StageCompleted
	return s
}
