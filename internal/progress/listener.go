package progress

// Listener receives item events. Calls for one item arrive in order; calls
// for different items interleave. Callbacks run while the Board is locked and
// must not call back into it.
type Listener interface {
	OnProgress(id string, progress int, stage Stage)
	OnComplete(id string)
	OnError(id, reason string)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Progress func(id string, progress int, stage Stage)
	Complete func(id string)
	Error    func(id, reason string)
}

func (f ListenerFuncs) OnProgress(id string, progress int, stage Stage) {
	if f.Progress != nil {
		f.Progress(id, progress, stage)
	}
}

func (f ListenerFuncs) OnComplete(id string) {
	if f.Complete != nil {
		f.Complete(id)
	}
}

func (f ListenerFuncs) OnError(id, reason string) {
	if f.Error != nil {
		f.Error(id, reason)
	}
}

// Listeners fans events out to several listeners in order.
type Listeners []Listener

func (ls Listeners) OnProgress(id string, progress int, stage Stage) {
	for _, l := range ls {
		l.OnProgress(id, progress, stage)
	}
}

func (ls Listeners) OnComplete(id string) {
	for _, l := range ls {
		l.OnComplete(id)
	}
}

func (ls Listeners) OnError(id, reason string) {
	for _, l := range ls {
		l.OnError(id, reason)
	}
}
