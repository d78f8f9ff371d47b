package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// fakeSink records every EventDoc passed to IndexEvent, guarded by a mutex
// since Plugin's hooks may be dispatched from the Manager's goroutines.
type fakeSink struct {
	mu   sync.Mutex
	docs []EventDoc
	err  error
}

func (s *fakeSink) IndexEvent(ctx context.Context, doc EventDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func TestSuccessAccumulatesBytesAndElapsed(t *testing.T) {
	now := fixedClock(time.Unix(0, 0), time.Second)
	p := New(nil, now)

	p.OnTaskStart("task-1")
	p.OnTaskProgress("task-1", protocol.Progress{UploadedBytes: 1024})
	p.OnTaskSuccess("task-1", "https://example.invalid/f")

	snap := p.Snapshot()
	require.Equal(t, 1, snap.TotalTasks)
	require.Equal(t, 1, snap.Success)
	require.EqualValues(t, 1024, snap.TotalBytes)
	require.Greater(t, snap.TotalElapsed, time.Duration(0))
}

func TestErrorAndCancelIncrementSeparateCounters(t *testing.T) {
	now := fixedClock(time.Unix(0, 0), time.Second)
	p := New(nil, now)

	p.OnTaskStart("task-err")
	p.OnTaskError("task-err", errors.New("disk full"))

	p.OnTaskStart("task-cancel")
	p.OnTaskCancel("task-cancel")

	snap := p.Snapshot()
	require.Equal(t, 2, snap.TotalTasks)
	require.Equal(t, 1, snap.Errors)
	require.Equal(t, 1, snap.Cancelled)
	require.Equal(t, 0, snap.Success)
}

func TestFinishToleratesMissingStart(t *testing.T) {
	now := fixedClock(time.Unix(0, 0), time.Second)
	p := New(nil, now)

	// OnTaskSuccess without a prior OnTaskStart — out-of-order delivery
	// must not panic and contributes a zero elapsed time.
	require.NotPanics(t, func() { p.OnTaskSuccess("ghost", "") })
	snap := p.Snapshot()
	require.Equal(t, 1, snap.Success)
}

func TestSuccessRateAndAverageSpeed(t *testing.T) {
	now := fixedClock(time.Unix(0, 0), time.Second)
	p := New(nil, now)

	p.OnTaskStart("a")
	p.OnTaskProgress("a", protocol.Progress{UploadedBytes: 100})
	p.OnTaskSuccess("a", "")

	p.OnTaskStart("b")
	p.OnTaskError("b", errors.New("x"))

	snap := p.Snapshot()
	require.InDelta(t, 0.5, snap.SuccessRate(), 0.0001)
	require.Greater(t, snap.AverageSpeed(), 0.0)
}

func TestZeroSnapshotDerivedMetricsDoNotDivideByZero(t *testing.T) {
	p := New(nil, nil)
	snap := p.Snapshot()
	require.Equal(t, 0.0, snap.AverageSpeed())
	require.Equal(t, 0.0, snap.SuccessRate())
}

func TestSinkReceivesOneDocPerTerminalEvent(t *testing.T) {
	now := fixedClock(time.Unix(0, 0), time.Second)
	sink := &fakeSink{}
	p := New(sink, now)

	p.OnTaskStart("a")
	p.OnTaskSuccess("a", "https://example.invalid/f")

	require.Equal(t, 1, sink.count())
}

func TestSinkFailureDoesNotPanic(t *testing.T) {
	now := fixedClock(time.Unix(0, 0), time.Second)
	sink := &fakeSink{err: errors.New("elasticsearch unreachable")}
	p := New(sink, now)

	p.OnTaskStart("a")
	require.NotPanics(t, func() { p.OnTaskSuccess("a", "") })
}
