package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "cleanup"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Eventually(t, func() bool { return q.Stats().Succeeded == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(2), q.Stats().Retried)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	gaveUp := make(chan Job, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, OnGiveUp: func(j Job, _ error) { gaveUp <- j }})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{ID: "x", Type: "cleanup"}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, "x", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("queue never gave up")
	}
	assert.Equal(t, int64(1), q.Stats().GaveUp)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
}
