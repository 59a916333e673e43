package monitor

// source adapts a platform watch primitive. Events and Errors are closed by
// the source after Close, once its goroutine has exited.
type source interface {
	Events() <-chan rawEvent
	Errors() <-chan error
	Close() error
	Type() string
}

const (
	sourceFsnotify = "fsnotify"
	sourcePolling  = "polling"

	sourceBufferSize = 256
)
