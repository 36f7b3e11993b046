package progress

import "errors"

var (
	ErrItemNotFound       = errors.New("item not found")
	ErrBoardDisposed      = errors.New("board disposed")
	ErrEmptyLabel         = errors.New("empty item label")
	ErrInvalidPolicy      = errors.New("invalid progress policy")
	ErrInvalidTransition  = errors.New("invalid stage transition")
	ErrItemFrozen         = errors.New("item is in a terminal stage")
	ErrProgressRegression = errors.New("progress may not decrease")
	ErrProgressRange      = errors.New("progress out of range 0..100")
	ErrTimedOut           = errors.New("timed out")
)
