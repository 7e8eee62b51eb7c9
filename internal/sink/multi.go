package sink

import "github.com/tendant/simple-brief/internal/process"

// Multi fans each callback out to every sink in order.
type Multi []process.ResultSink

func (m Multi) OnProgress(key process.EntityKey, message string) {
	for _, s := range m {
		s.OnProgress(key, message)
	}
}

func (m Multi) OnCompleted(key process.EntityKey, brief string) {
	for _, s := range m {
		s.OnCompleted(key, brief)
	}
}

func (m Multi) OnFailed(key process.EntityKey, reason string) {
	for _, s := range m {
		s.OnFailed(key, reason)
	}
}

func (m Multi) OnTimedOut(key process.EntityKey) {
	for _, s := range m {
		s.OnTimedOut(key)
	}
}

// Funcs adapts plain functions to a ResultSink. Nil fields are skipped.
type Funcs struct {
	Progress  func(key process.EntityKey, message string)
	Completed func(key process.EntityKey, brief string)
	Failed    func(key process.EntityKey, reason string)
	TimedOut  func(key process.EntityKey)
}

func (f Funcs) OnProgress(key process.EntityKey, message string) {
	if f.Progress != nil {
		f.Progress(key, message)
	}
}

func (f Funcs) OnCompleted(key process.EntityKey, brief string) {
	if f.Completed != nil {
		f.Completed(key, brief)
	}
}

func (f Funcs) OnFailed(key process.EntityKey, reason string) {
	if f.Failed != nil {
		f.Failed(key, reason)
	}
}

func (f Funcs) OnTimedOut(key process.EntityKey) {
	if f.TimedOut != nil {
		f.TimedOut(key)
	}
}
