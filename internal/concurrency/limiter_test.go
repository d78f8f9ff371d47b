package concurrency

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveLimit(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	_, err = New(-1)
	require.Error(t, err)
}

func TestConcurrencyCapRespected(t *testing.T) {
	l, err := New(3)
	require.NoError(t, err)

	var active, maxActive int32
	n := 20
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		go func() {
			_, _ = l.Run(context.Background(), func(ctx context.Context) (any, error) {
				cur := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if cur <= m || atomic.CompareAndSwapInt32(&maxActive, m, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil, nil
			})
			done <- struct{}{}
		}()
	}

	for i := 0; i < n; i++ {
		<-done
	}
	require.LessOrEqual(t, int(atomic.LoadInt32(&maxActive)), 3)
}

func TestRunPropagatesError(t *testing.T) {
	l, err := New(1)
	require.NoError(t, err)

	wantErr := context.Canceled
	_, err = l.Run(context.Background(), func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestFailingTaskDoesNotCancelPeers(t *testing.T) {
	l, err := New(2)
	require.NoError(t, err)

	_, errA := l.Run(context.Background(), func(ctx context.Context) (any, error) {
		return nil, context.Canceled
	})
	require.Error(t, errA)

	value, errB := l.Run(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, errB)
	require.Equal(t, "ok", value)
}

func TestUpdateLimitRejectsNonPositive(t *testing.T) {
	l, err := New(2)
	require.NoError(t, err)
	require.Error(t, l.UpdateLimit(0))
}

func TestClearQueueOnlyDropsPending(t *testing.T) {
	l, err := New(1)
	require.NoError(t, err)

	blockCh := make(chan struct{})
	activeStarted := make(chan struct{})
	go func() {
		_, _ = l.Run(context.Background(), func(ctx context.Context) (any, error) {
			close(activeStarted)
			<-blockCh
			return "active-done", nil
		})
	}()
	<-activeStarted

	pendingErrCh := make(chan error, 1)
	go func() {
		_, err := l.Run(context.Background(), func(ctx context.Context) (any, error) {
			return "pending-should-not-run", nil
		})
		pendingErrCh <- err
	}()

	// Give the second Run call a moment to land in the pending queue.
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 1, l.PendingCount())

	cleared := l.ClearQueue()
	require.Equal(t, 1, cleared)
	require.Error(t, <-pendingErrCh)

	close(blockCh)
}

func TestFIFOOrdering(t *testing.T) {
	l, err := New(1)
	require.NoError(t, err)

	blockCh := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = l.Run(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-blockCh
			return nil, nil
		})
	}()
	<-started

	var order []int
	orderCh := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			_, _ = l.Run(context.Background(), func(ctx context.Context) (any, error) {
				orderCh <- i
				return nil, nil
			})
		}()
		time.Sleep(2 * time.Millisecond) // preserve submission order into the pending slice
	}

	close(blockCh)
	for i := 0; i < 3; i++ {
		order = append(order, <-orderCh)
	}
	require.Equal(t, []int{0, 1, 2}, order)
}
