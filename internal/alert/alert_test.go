package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	events []Event
}

func (f *fakeSink) Emit(_ context.Context, ev Event) {
	f.events = append(f.events, ev)
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	multi := MultiSink{a, b}

	ev := Event{Level: Critical, Proxy: "web", Server: "s1", Message: "server down"}
	multi.Emit(context.Background(), ev)

	assert.Equal(t, []Event{ev}, a.events)
	assert.Equal(t, []Event{ev}, b.events)
}

func TestLevelStrings(t *testing.T) {
	assert.Equal(t, "NOTICE", Notice.String())
	assert.Equal(t, "WARNING", Warning.String())
	assert.Equal(t, "ALERT", Critical.String())
	assert.Equal(t, "EMERG", Emergency.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
