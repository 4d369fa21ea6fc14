package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsImmediateTask(t *testing.T) {
	sched := NewScheduler(testLogger())
	defer sched.Stop()

	var runs atomic.Int64
	stop := sched.Every(context.Background(), "tick", time.Hour, true, func(context.Context) {
		runs.Add(1)
	})
	defer stop()

	assert.Eventually(t, func() bool { return runs.Load() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestSchedulerStopPreventsNewTasks(t *testing.T) {
	sched := NewScheduler(testLogger())
	sched.Stop()

	var runs atomic.Int64
	stop := sched.Every(context.Background(), "late", time.Millisecond, true, func(context.Context) {
		runs.Add(1)
	})
	stop()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestSchedulerStopCancelsRunningTasks(t *testing.T) {
	sched := NewScheduler(testLogger())

	var runs atomic.Int64
	sched.Every(context.Background(), "tick", 5*time.Millisecond, false, func(context.Context) {
		runs.Add(1)
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 1 },
		time.Second, time.Millisecond)

	sched.Stop()
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}
