package workers

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobsRunAndWaitReturns(t *testing.T) {
	wp := NewWorkerPool(4, 100)
	defer wp.Stop()

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		assert.True(t, wp.AddJob(func() { n.Add(1) }))
	}
	wp.Wait()
	assert.Equal(t, int32(50), n.Load())
}

func TestFullQueueDropsJob(t *testing.T) {
	wp := NewWorkerPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	assert.True(t, wp.AddJob(func() { close(started); <-block }))
	<-started
	assert.True(t, wp.AddJob(func() {}))
	assert.False(t, wp.AddJob(func() {}))
	assert.Equal(t, int64(1), wp.Dropped())
	assert.Equal(t, 1, wp.Pending())
	assert.Equal(t, 1, wp.Capacity())

	close(block)
	wp.Stop()
}

func TestStopDrainsAndIsIdempotent(t *testing.T) {
	wp := NewWorkerPool(2, 10)
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		wp.AddJob(func() { n.Add(1) })
	}
	wp.Stop()
	wp.Stop()

	assert.Equal(t, int32(10), n.Load())
	assert.False(t, wp.AddJob(func() {}))
}
