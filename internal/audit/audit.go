package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/vibeapp/server/internal/logger"
)

const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)

// Event is one audit record for a security-relevant operation.
type Event struct {
	Timestamp time.Time
	Event     string
	IP        string
	Actor     string
	Result    string
	Reason    string
}

// Sink receives audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SlogSink writes audit events to the application logger.
type SlogSink struct {
	logger *logger.Logger
}

func NewSlogSink(logger *logger.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	s.logger.Info("audit",
		"event", event.Event,
		"ip", event.IP,
		"user", event.Actor,
		"result", event.Result,
		"reason", event.Reason)
}

// Recorder wraps flow operations and emits exactly one audit event per
// invocation, success or failure. Errors pass through unchanged.
type Recorder struct {
	sink Sink
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Observe runs fn and records its outcome. The wrapped operation resolves
// the actor itself: from the request payload when the caller is not yet
// authenticated, otherwise from the authenticated context. The event is
// emitted even when fn panics, and the panic is re-raised.
func (r *Recorder) Observe(ctx context.Context, event, ip string, fn func() (actor string, err error)) error {
	ev := Event{
		Event:  event,
		IP:     ip,
		Actor:  "UNKNOWN",
		Result: ResultSuccess,
		Reason: "-",
	}

	defer func() {
		ev.Timestamp = time.Now()
		if p := recover(); p != nil {
			ev.Result = ResultFailure
			ev.Reason = fmt.Sprint(p)
			r.sink.Emit(ctx, ev)
			panic(p)
		}
		r.sink.Emit(ctx, ev)
	}()

	actor, err := fn()
	if actor != "" {
		ev.Actor = actor
	}
	if err != nil {
		ev.Result = ResultFailure
		ev.Reason = err.Error()
	}
	return err
}
