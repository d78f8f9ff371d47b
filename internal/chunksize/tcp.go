package chunksize

import "time"

// tcpState is the optional TCP-style congestion variant allowed (not
// required): slow-start doubles aggressively until a
// slow-start threshold is crossed, then grows additively; a slow chunk
// sets the threshold to half the current size and drops the size back to
// minSize in slow start.
type tcpState int

const (
	slowStart tcpState = iota
	congestionAvoidance
)

// TCPAdjuster is an alternate Adjuster implementation layering a slow-start
// threshold on top of the same min/max/target contract. It satisfies the
// same shape as Adjuster (CurrentSize/Adjust/Reset); Adjuster is what
// internal/uploadtask actually drives.
type TCPAdjuster struct {
	min, max, initialSize, current int64
	target                         time.Duration
	ssthresh                       int64
	state                          tcpState
}

// NewTCP constructs a TCPAdjuster with the same validation as New.
func NewTCP(cfg Config) (*TCPAdjuster, error) {
	base, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &TCPAdjuster{
		min:         base.min,
		max:         base.max,
		initialSize: base.initialSize,
		current:     base.current,
		target:      base.target,
		ssthresh:    base.max,
		state:       slowStart,
	}, nil
}

func (t *TCPAdjuster) CurrentSize() int64 { return t.current }

func (t *TCPAdjuster) Reset() {
	t.current = t.initialSize
	t.ssthresh = t.max
	t.state = slowStart
}

// Adjust applies slow-start/congestion-avoidance/fast-recovery transitions
// using the same slow/fast thresholds as Adjuster.Adjust.
func (t *TCPAdjuster) Adjust(uploadTime time.Duration) int64 {
	switch {
	case uploadTime < t.target/2:
		switch t.state {
		case slowStart:
			t.current = min64(t.current*2, t.max)
			if t.current >= t.ssthresh {
				t.state = congestionAvoidance
			}
		case congestionAvoidance:
			t.current = min64(t.current+t.min, t.max)
		}
	case uploadTime > t.target+t.target/2:
		t.ssthresh = max64(t.current/2, t.min)
		t.current = t.min
		t.state = slowStart
	}
	return t.current
}
