package engine

import "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"

// ProgressSink receives discrete status transitions as the engine attempts
// items. Publish may be called from multiple goroutines when level
// parallelism is enabled.
type ProgressSink interface {
	Publish(event domain.ProgressEvent)
}

// SinkFunc adapts a function to the ProgressSink interface.
type SinkFunc func(event domain.ProgressEvent)

// Publish calls f(event).
func (f SinkFunc) Publish(event domain.ProgressEvent) { f(event) }

// NopSink discards all events.
var NopSink ProgressSink = SinkFunc(func(domain.ProgressEvent) {})
