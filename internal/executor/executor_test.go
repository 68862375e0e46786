package executor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPostsResultToConsumer(t *testing.T) {
	e := New(2)
	defer e.StopWait()

	var onPool atomic.Int32
	results := make([]int, 0)

	for i := 0; i < 5; i++ {
		i := i
		e.Run(func() func() {
			onPool.Add(1)
			return func() { results = append(results, i) }
		})
	}

	require.Eventually(t, func() bool { return e.Pending() == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), onPool.Load())
	assert.Empty(t, results, "results must not be applied before Drain")

	assert.Equal(t, 5, e.Drain())
	assert.Len(t, results, 5)
	assert.Equal(t, 0, e.Drain())
}

func TestDrainRunsClosuresPostedWhileDraining(t *testing.T) {
	e := New(1)
	defer e.StopWait()

	var order []string
	e.Post(func() {
		order = append(order, "first")
		e.Post(func() { order = append(order, "second") })
	})

	assert.Equal(t, 2, e.Drain())
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestNotifyAfterPost(t *testing.T) {
	e := New(1)
	defer e.StopWait()

	e.Run(func() func() { return func() {} })

	select {
	case <-e.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after post")
	}
	assert.Equal(t, 1, e.Drain())
}
