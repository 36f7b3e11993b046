package progress

// Stage is the lifecycle position of a simulated item.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// order is the position of each stage on the happy path.
var order = map[Stage]int{
	StageQueued:     0,
	StageUploading:  1,
	StageProcessing: 2,
	StageCompleted:  3,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s == StageError {
		return true
	}
	_, ok := order[s]
	return ok
}

// Terminal reports whether no further automatic transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// CanTransition reports whether an item may move from one stage to another.
// The only legal moves are one step along queued, uploading, processing,
// completed, or into error from any non-terminal stage.
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StageError {
		return true
	}
	return order[to] == order[from]+1
}
