package alert

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// eventTypePrefix namespaces the CloudEvent types this sink emits,
// following the com.<project>.<domain>.<noun> convention used for the
// CrisisTextLine-modular lifecycle events this sink is grounded on.
const eventTypePrefix = "com.relaylb.checkengine.liveness"

// CloudEventSender is the minimal surface of a cloudevents.Client this
// sink needs, kept narrow so tests can supply a stub instead of
// standing up real HTTP transport.
type CloudEventSender interface {
	Send(ctx context.Context, event cloudevents.Event) cloudevents.Result
}

// CloudEventSink translates liveness Events into CloudEvents and hands
// them to a sender (typically an HTTP client.Client pointed at a log
// aggregator or event bus).
type CloudEventSink struct {
	source string
	send   CloudEventSender
}

// NewCloudEventSink creates a sink that stamps events with source as
// their CloudEvents source attribute.
func NewCloudEventSink(source string, send CloudEventSender) *CloudEventSink {
	return &CloudEventSink{source: source, send: send}
}

// Emit converts ev to a CloudEvent and sends it. Send is called
// synchronously on the caller's goroutine and its result is discarded:
// a failed delivery is neither retried nor reported.
func (s *CloudEventSink) Emit(ctx context.Context, ev Event) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(s.source)
	event.SetType(eventTypePrefix + "." + levelType(ev.Level))
	event.SetTime(time.Now())
	_ = event.SetData(cloudevents.ApplicationJSON, map[string]string{
		"proxy":   ev.Proxy,
		"server":  ev.Server,
		"message": ev.Message,
		"level":   ev.Level.String(),
	})
	_ = s.send.Send(ctx, event)
}

func levelType(l Level) string {
	switch l {
	case Emergency:
		return "emergency"
	case Critical:
		return "down"
	case Warning:
		return "warning"
	default:
		return "changed"
	}
}
