package check

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvancePastStepsByWholeMultiples(t *testing.T) {
	start := time.Unix(1000, 0)
	expire := start
	now := start.Add(7500 * time.Millisecond)

	advancePast(&expire, now, 2*time.Second)

	assert.True(t, expire.After(now))
	assert.Equal(t, start.Add(8*time.Second), expire)
}

func TestAdvancePastNoOpWhenAlreadyInFuture(t *testing.T) {
	start := time.Unix(1000, 0)
	expire := start.Add(10 * time.Second)
	now := start

	advancePast(&expire, now, 2*time.Second)

	assert.Equal(t, start.Add(10*time.Second), expire)
}

func TestAdvancePastNonPositiveIntervalSnapsToNow(t *testing.T) {
	expire := time.Unix(1000, 0)
	now := time.Unix(5000, 0)

	advancePast(&expire, now, 0)

	assert.Equal(t, now, expire)
}

func TestTaskWakeIsNoOp(t *testing.T) {
	task := &Task{}
	assert.NotPanics(t, func() { task.Wake() })
}
