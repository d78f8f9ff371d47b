package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlersCalledInRegistrationOrder(t *testing.T) {
	b := New()
	var order []int
	b.On(EventStart, func(payload any) { order = append(order, 1) })
	b.On(EventStart, func(payload any) { order = append(order, 2) })
	b.On(EventStart, func(payload any) { order = append(order, 3) })

	b.Emit(EventStart, nil)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestPanickingHandlerIsolated(t *testing.T) {
	b := New()
	var secondCalled bool
	b.On(EventStart, func(payload any) { panic("boom") })
	b.On(EventStart, func(payload any) { secondCalled = true })

	require.NotPanics(t, func() { b.Emit(EventStart, nil) })
	require.True(t, secondCalled)
}

func TestOffRemovesHandler(t *testing.T) {
	b := New()
	var called bool
	id := b.On(EventStart, func(payload any) { called = true })
	b.Off(EventStart, id)

	b.Emit(EventStart, nil)
	require.False(t, called)
}

func TestWildcardReceivesEveryEvent(t *testing.T) {
	b := New()
	var seen []Event
	b.On(Wildcard, func(payload any) {})
	b.On(EventStart, func(payload any) { seen = append(seen, EventStart) })
	b.On(Wildcard, func(payload any) { seen = append(seen, Wildcard) })

	b.Emit(EventStart, nil)
	require.Equal(t, []Event{EventStart, Wildcard}, seen)
}

func TestEmitDeliversPayload(t *testing.T) {
	b := New()
	var got ProgressPayload
	b.On(EventProgress, func(payload any) { got = payload.(ProgressPayload) })

	b.Emit(EventProgress, ProgressPayload{Progress: 42, Speed: 1024})
	require.Equal(t, 42.0, got.Progress)
	require.Equal(t, 1024.0, got.Speed)
}
