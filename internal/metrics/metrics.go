// Package metrics is a tiny facade over a pluggable metrics backend.
//
// The pipeline code calls the package-level functions and stays ignorant of
// where metrics go. By default they go nowhere (nop backend); a main wires a
// real backend with SetBackend. Backends that buffer submit on Flush.
package metrics

import "sync/atomic"

// Labels are free-form metric dimensions ("stage", "status", "kind").
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use; the pipeline calls them from request handlers.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer and submit on demand.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

// holder gives atomic.Value a single concrete type regardless of which
// Backend implementation is installed.
type holder struct{ b Backend }

var backend atomic.Value // holder

func init() {
	backend.Store(holder{nopBackend{}})
}

// SetBackend installs the process-wide backend. Passing nil restores the nop
// backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend.Store(holder{b})
}

func current() Backend {
	return backend.Load().(holder).b
}

// IncCounter adds delta to a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits buffered metrics if the backend buffers; otherwise a no-op.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
