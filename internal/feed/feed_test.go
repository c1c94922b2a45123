// v0
// internal/feed/feed_test.go
package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedKeepsLatest(t *testing.T) {
	f := New[int](2)
	drops := 0
	f.OnDrop(func() { drops++ })

	for i := 1; i <= 5; i++ {
		require.NoError(t, f.Publish(i))
	}

	ctx := context.Background()
	v, err := f.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	v, err = f.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, uint64(3), f.Dropped())
	assert.Equal(t, 3, drops)
}

func TestFeedMarkerSurvivesFullBuffer(t *testing.T) {
	f := New[string](1)
	require.NoError(t, f.Publish("a"))
	f.Close()
	f.Close()

	_, err := f.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Publish("b"), ErrClosed)
}

func TestFeedDrainsBeforeMarker(t *testing.T) {
	f := New[int](4)
	require.NoError(t, f.Publish(1))
	require.NoError(t, f.Publish(2))
	f.Close()

	var got []int
	for {
		v, err := f.Next(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2}, got)
}

func TestFeedNextHonoursContext(t *testing.T) {
	f := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedConcurrentProducer(t *testing.T) {
	f := New[int](8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = f.Publish(i)
		}
		f.Close()
	}()

	last := -1
	for {
		v, err := f.Next(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		require.Greater(t, v, last)
		last = v
	}
	wg.Wait()
	assert.Equal(t, 999, last)
}
