package audit

import (
	"context"
	"sync"
)

// MultiSink fans entries out to several sinks, typically the bounded
// in-memory trail plus the durable database sink.
type MultiSink struct {
	sinks []Sink
	async bool
	wg    sync.WaitGroup
}

// NewMultiSink creates a fan-out sink. Writes are synchronous by
// default so the audit contract "decision and entry in the same step"
// holds; SetAsync trades that for latency.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// SetAsync makes Record return before the slower sinks finish.
func (m *MultiSink) SetAsync(async bool) {
	m.async = async
}

// Record implements Sink.
func (m *MultiSink) Record(ctx context.Context, entry *Entry) error {
	if m.async {
		for _, sink := range m.sinks {
			m.wg.Add(1)
			go func(s Sink) {
				defer m.wg.Done()
				_ = s.Record(context.WithoutCancel(ctx), entry)
			}(sink)
		}
		return nil
	}

	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Wait blocks until pending async writes finish. Used during shutdown.
func (m *MultiSink) Wait() {
	m.wg.Wait()
}
