// Package chunksize implements the client-side chunk-size adjuster:
// a small stateful arithmetic controller that grows or shrinks the *next*
// chunk size based on how long the *previous* chunk took to upload.
//
// This is pure arithmetic state written in the same error-handling idiom
// as the rest of the tree (internal/pkg/xerr sentinel errors + CodeError).
// No congestion-window or adaptive-rate-limiting library is warranted at
// this layer, so it stays on the standard library: it is pure arithmetic
// state, not I/O or orchestration.
package chunksize

import (
	"time"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
)

// defaultTargetTime is the default target upload time per chunk.
const defaultTargetTime = 3 * time.Second

// Adjuster holds one task's chunk-size state. It is not thread-safe: a task
// owns exactly one instance and calls Adjust from a single goroutine.
type Adjuster struct {
	min         int64
	max         int64
	initialSize int64
	current     int64
	target      time.Duration
}

// Config carries the constructor inputs for New.
type Config struct {
	InitialSize int64
	MinSize     int64
	MaxSize     int64
	TargetTime  time.Duration // zero defaults to 3s
}

// New validates and constructs an Adjuster. Bad
// construction inputs are rejected rather than clamped:
//   - minSize > maxSize
//   - initialSize outside [minSize, maxSize]
//   - targetTime <= 0 (after defaulting a zero TargetTime to 3s)
func New(cfg Config) (*Adjuster, error) {
	target := cfg.TargetTime
	if target == 0 {
		target = defaultTargetTime
	}
	if cfg.MinSize > cfg.MaxSize {
		return nil, xerr.NewCodeError(xerr.InvalidArgumentCode, xerr.ErrInvalidArgument)
	}
	if cfg.InitialSize < cfg.MinSize || cfg.InitialSize > cfg.MaxSize {
		return nil, xerr.NewCodeError(xerr.InvalidArgumentCode, xerr.ErrInvalidArgument)
	}
	if target <= 0 {
		return nil, xerr.NewCodeError(xerr.InvalidArgumentCode, xerr.ErrInvalidArgument)
	}
	return &Adjuster{
		min:         cfg.MinSize,
		max:         cfg.MaxSize,
		initialSize: cfg.InitialSize,
		current:     cfg.InitialSize,
		target:      target,
	}, nil
}

// CurrentSize returns the size that the next unplanned chunk should use.
// minSize <= CurrentSize() <= maxSize always holds.
func (a *Adjuster) CurrentSize() int64 {
	return a.current
}

// Adjust folds in one chunk's observed upload time and returns the size to
// use for the next chunk, per a three-way rule:
//   - uploadTime < 0.5*target  -> double, capped at max (speeding up)
//   - uploadTime > 1.5*target  -> halve, floored at min (slowing down)
//   - otherwise                -> unchanged
func (a *Adjuster) Adjust(uploadTime time.Duration) int64 {
	switch {
	case uploadTime < a.target/2:
		a.current = min64(a.current*2, a.max)
	case uploadTime > a.target+a.target/2:
		a.current = max64(a.current/2, a.min)
	}
	return a.current
}

// Reset restores the size set at construction — used
// between independent task plans, never mid-task (mid-upload renegotiation
// is forbidden; see DESIGN.md's Open Question decision).
func (a *Adjuster) Reset() {
	a.current = a.initialSize
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
