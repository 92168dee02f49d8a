package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for _, u := range []string{"https://a.edu", "https://b.edu", "https://c.edu"} {
		require.NoError(t, q.Enqueue(context.Background(), crawler.ScanRequest{URL: u}))
	}
	require.Equal(t, 3, q.Len())
	q.Close()

	var got []string
	for {
		req, err := q.Dequeue(context.Background())
		if err != nil {
			require.ErrorIs(t, err, ErrClosed)
			break
		}
		got = append(got, req.URL)
	}
	require.Equal(t, []string{"https://a.edu", "https://b.edu", "https://c.edu"}, got)
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan crawler.ScanRequest, 1)
	go func() {
		req, err := q.Dequeue(context.Background())
		if err == nil {
			result <- req
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), crawler.ScanRequest{URL: "https://a.edu"}))
	select {
	case got := <-result:
		require.Equal(t, "https://a.edu", got.URL)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return request")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue(1)
	require.NoError(t, full.Enqueue(context.Background(), crawler.ScanRequest{URL: "https://primed.edu"}))
	require.EqualError(t, full.Enqueue(ctx, crawler.ScanRequest{}), "enqueue canceled: context canceled")
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close()

	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, q.Enqueue(context.Background(), crawler.ScanRequest{URL: "https://late.edu"}), ErrClosed)
}
