package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestGate(t *testing.T) {
	g := NewRequestGate()

	require.NoError(t, g.TryBegin("create-room"))
	assert.ErrorIs(t, g.TryBegin("join-room"), ErrBusy)

	name, ok := g.Pending()
	assert.True(t, ok)
	assert.Equal(t, "create-room", name)

	assert.Equal(t, "create-room", g.End())
	assert.Equal(t, "", g.End(), "End is idempotent")

	_, ok = g.Pending()
	assert.False(t, ok)
	assert.NoError(t, g.TryBegin(""))
}

func TestRequestGate_Concurrent(t *testing.T) {
	g := NewRequestGate()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryBegin("join-room") == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
