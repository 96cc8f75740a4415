// Package congestion implements the RTO estimator (spec component B) and
// the TCP sender state machine (spec component G) for the Tahoe, Reno, and
// NewReno variants. It is grounded on the teacher lineage's cubicSender —
// a single flat struct with a boolean/enum flag distinguishing variants,
// rather than a hierarchy of congestion-control subclasses — generalized
// per spec.md §9's redesign note from a cyclic Slow-Start/Congestion-
// Avoidance/Fast-Recovery object graph to a tagged-state enum with pure
// transition functions.
package congestion

import (
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/utils"
)

// RTOEstimator maintains smoothed RTT, RTT deviation, and the retransmission
// timeout interval per RFC 6298, with exponential backoff, exactly as
// spec.md §4.B prescribes.
type RTOEstimator struct {
	estimatedRTT protocol.Tick // smoothed RTT in ticks, gain 1/8 per sample
	devRTT       protocol.Tick // RTT deviation in ticks, gain 1/4 per sample

	haveSample bool

	timeoutInterval    protocol.Tick // base interval, before backoff
	backoff            int           // power of two
	tickDuration       protocol.Tick
	maxTimeoutInterval protocol.Tick
}

// NewRTOEstimator builds an estimator for the given tick duration. The max
// timeout interval is bounded to <= 240 * tickDuration per spec.md §4.B.
func NewRTOEstimator(tickDuration protocol.Tick) *RTOEstimator {
	return &RTOEstimator{
		timeoutInterval:    1.0,
		backoff:            1,
		tickDuration:       tickDuration,
		maxTimeoutInterval: 240 * tickDuration,
	}
}

// UpdateRTT folds a new RTT sample (now - ts) into the smoothed estimate.
// ts < 0 marks a retransmission timestamp and is ignored, per spec.
func (r *RTOEstimator) UpdateRTT(now, ts protocol.Tick) {
	if ts < 0 {
		return
	}
	r.backoff = 1

	sample := utils.MaxTick(1, round((now-ts)/r.tickDuration))

	if !r.haveSample {
		r.estimatedRTT = sample
		r.devRTT = sample / 2
		r.haveSample = true
	} else {
		err := sample - r.estimatedRTT
		r.estimatedRTT += err / 8
		r.devRTT += (utils.AbsTick(err) - r.devRTT) / 4
	}

	interval := r.estimatedRTT + utils.MaxTick(1, 4*r.devRTT)
	interval = utils.MaxTick(interval, 1.0)
	r.timeoutInterval = interval * r.tickDuration
}

// TimerBackoff doubles the backoff multiplier, provided the current
// backed-off timeout is still under the maximum. The doubled value may
// exceed the maximum; GetTimeoutInterval clamps it.
func (r *RTOEstimator) TimerBackoff() {
	if r.timeoutInterval*protocol.Tick(r.backoff) < r.maxTimeoutInterval {
		r.backoff <<= 1
	}
}

// GetTimeoutInterval returns the current backed-off timeout, clamped to
// [tickDuration, maxTimeoutInterval].
func (r *RTOEstimator) GetTimeoutInterval() protocol.Tick {
	return utils.ClampTick(r.timeoutInterval*protocol.Tick(r.backoff), r.tickDuration, r.maxTimeoutInterval)
}

// EstimatedRTT exposes the smoothed RTT for reporting.
func (r *RTOEstimator) EstimatedRTT() protocol.Tick { return r.estimatedRTT }

func round(t protocol.Tick) protocol.Tick {
	if t < 0 {
		return -round(-t)
	}
	return protocol.Tick(int64(t + 0.5))
}
