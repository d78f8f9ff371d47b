package chunksize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		InitialSize: 1 << 20,
		MinSize:     256 << 10,
		MaxSize:     10 << 20,
		TargetTime:  3 * time.Second,
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	cfg := validConfig()
	cfg.MinSize, cfg.MaxSize = cfg.MaxSize, cfg.MinSize
	_, err := New(cfg)
	require.Error(t, err)

	cfg = validConfig()
	cfg.InitialSize = cfg.MaxSize + 1
	_, err = New(cfg)
	require.Error(t, err)

	cfg = validConfig()
	cfg.TargetTime = -time.Second
	_, err = New(cfg)
	require.Error(t, err)
}

func TestAdjustBounds(t *testing.T) {
	a, err := New(validConfig())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		size := a.Adjust(10 * time.Millisecond)
		require.GreaterOrEqual(t, size, a.min)
		require.LessOrEqual(t, size, a.max)
	}
	require.Equal(t, a.max, a.CurrentSize())
}

func TestAdjustDoublesUntilMax(t *testing.T) {
	a, err := New(validConfig())
	require.NoError(t, err)

	prev := a.CurrentSize()
	for prev < a.max {
		next := a.Adjust(0)
		require.True(t, next == prev*2 || next == a.max)
		prev = next
	}
	require.Equal(t, a.max, a.CurrentSize())
}

func TestAdjustHalvesUntilMin(t *testing.T) {
	a, err := New(validConfig())
	require.NoError(t, err)

	prev := a.CurrentSize()
	for prev > a.min {
		next := a.Adjust(10 * time.Second)
		require.True(t, next == prev/2 || next == a.min)
		prev = next
	}
	require.Equal(t, a.min, a.CurrentSize())
}

func TestAdjustHoldsWithinTargetBand(t *testing.T) {
	a, err := New(validConfig())
	require.NoError(t, err)

	before := a.CurrentSize()
	after := a.Adjust(3 * time.Second)
	require.Equal(t, before, after)
}

func TestReset(t *testing.T) {
	a, err := New(validConfig())
	require.NoError(t, err)

	a.Adjust(0)
	require.NotEqual(t, a.initialSize, a.CurrentSize())
	a.Reset()
	require.Equal(t, a.initialSize, a.CurrentSize())
}
