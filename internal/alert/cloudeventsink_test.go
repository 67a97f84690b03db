package alert

import (
	"context"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []cloudevents.Event
}

func (f *fakeSender) Send(_ context.Context, event cloudevents.Event) cloudevents.Result {
	f.sent = append(f.sent, event)
	return nil
}

func TestCloudEventSinkStampsSourceAndType(t *testing.T) {
	sender := &fakeSender{}
	sink := NewCloudEventSink("checkengine", sender)

	sink.Emit(context.Background(), Event{Level: Critical, Proxy: "web", Server: "s1", Message: "server down"})

	require.Len(t, sender.sent, 1)
	got := sender.sent[0]
	assert.Equal(t, "checkengine", got.Source())
	assert.Equal(t, eventTypePrefix+".down", got.Type())
	assert.NotEmpty(t, got.ID())
}

func TestCloudEventSinkLevelTypeMapping(t *testing.T) {
	assert.Equal(t, "emergency", levelType(Emergency))
	assert.Equal(t, "down", levelType(Critical))
	assert.Equal(t, "warning", levelType(Warning))
	assert.Equal(t, "changed", levelType(Notice))
}
