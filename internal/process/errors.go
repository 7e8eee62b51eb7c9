package process

import "errors"

var (
	ErrEmptyKey = errors.New("process: empty entity key")

	// ErrInitiationFailed wraps any failure of the initiate call. No job is
	// created when it is returned.
	ErrInitiationFailed = errors.New("process: brief initiation failed")

	// Poller failures. These never escape the poller; they are logged and
	// surfaced through the ResultSink.
	ErrPollTransport  = errors.New("process: status query failed")
	ErrBackendFailure = errors.New("process: backend reported failure")
	ErrPollingTimeout = errors.New("process: polling attempts exhausted")

	ErrDispatcherClosed = errors.New("process: dispatcher closed")
	ErrShutdownTimeout  = errors.New("process: shutdown timed out")
)
