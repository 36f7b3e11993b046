package progress

import (
	"context"
	"time"
)

// SizeClass buckets an item by its declared size.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

const (
	smallLimit  = 1 << 20
	mediumLimit = 10 << 20
)

// ClassifySize maps a byte count to its size class.
func ClassifySize(sizeBytes int64) SizeClass {
	switch {
	case sizeBytes < smallLimit:
		return SizeSmall
	case sizeBytes <= mediumLimit:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// Item is a snapshot of one simulated item. Snapshots are copies; mutating
// one has no effect on the Board.
type Item struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	SizeClass   SizeClass  `json:"size_class"`
	SizeBytes   int64      `json:"size_bytes"`
	Stage       Stage      `json:"stage"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ItemSpec describes an item to submit.
type ItemSpec struct {
	Label     string
	SizeBytes int64
}

// Patch lists the fields Update may change. Nil fields are left untouched.
type Patch struct {
	Label    *string
	Stage    *Stage
	Progress *int
	// Reason is recorded when Stage moves the item to StageError.
	Reason string
}

// Work is the asynchronous job behind an item. The ticker reports simulated
// progress while it runs and the item cannot complete before it returns.
// A nil Work counts as already finished.
type Work func(ctx context.Context) error

// Sleep returns Work that finishes after d, or earlier with the context error.
func Sleep(d time.Duration) Work {
	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
