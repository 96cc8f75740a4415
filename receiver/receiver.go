// Package receiver implements the TCP receiver's cumulative/duplicate ACK
// generator with delayed-ACK handling (spec component F). It is grounded
// on the teacher lineage's received_packet_history design: an ordered
// buffer of out-of-order arrivals drained whenever a gap closes, the same
// shape as quic-go's ackhandler packet-number interval tracking collapsed
// here to plain byte offsets.
package receiver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/simclock"
	"github.com/tcpsim/tcpsim/utils"
)

// SegmentSink is the callback a Receiver uses to hand a freshly built ACK
// segment to the topology (in the full simulator, the receiver-side
// endpoint's link).
type SegmentSink func(segment.Segment)

// Clock is the timer-wheel surface a Receiver needs, mirroring
// congestion.Clock: the current tick plus arming/cancelling its own
// delayed-ACK timer.
type Clock interface {
	CurrentTime() protocol.Tick
	SetTimeoutAt(timer simclock.Timer) (simclock.Handle, error)
	CancelTimeout(h simclock.Handle) error
}

// Receiver implements spec.md §4.F.
type Receiver struct {
	peer protocol.Identity

	maxRcvWindow     protocol.ByteCount
	currentRcvWindow protocol.ByteCount
	lastByteReceived protocol.ByteCount
	nextByteExpected protocol.ByteCount

	outOfOrder []segment.Segment
	pendingAck *segment.Segment

	delayedAckHandle *simclock.Handle

	clock Clock
	sink  SegmentSink
	log   *zap.Logger
}

// New constructs a Receiver in its initial state, per spec.md §3.
func New(peer protocol.Identity, maxRcvWindow protocol.ByteCount, clock Clock, sink SegmentSink, log *zap.Logger) *Receiver {
	return &Receiver{
		peer:             peer,
		maxRcvWindow:     maxRcvWindow,
		currentRcvWindow: maxRcvWindow,
		lastByteReceived: protocol.NoSequence,
		nextByteExpected: 0,
		clock:            clock,
		sink:             sink,
		log:              log,
	}
}

// NextByteExpected returns the next contiguous byte offset the receiver
// has not yet seen.
func (r *Receiver) NextByteExpected() protocol.ByteCount { return r.nextByteExpected }

// CurrentRcvWindow returns the advertised receive window.
func (r *Receiver) CurrentRcvWindow() protocol.ByteCount { return r.currentRcvWindow }

// MaxRcvWindow returns the receiver's fixed maximum advertisable window.
func (r *Receiver) MaxRcvWindow() protocol.ByteCount { return r.maxRcvWindow }

// BufferedLen returns the number of segments currently held in the
// out-of-order buffer, for testing and verbose tracing.
func (r *Receiver) BufferedLen() int { return len(r.outOfOrder) }

// CheckOutOfOrderInvariant verifies that every buffered out-of-order
// segment starts strictly after next_byte_expected and that no two
// buffered segments' byte ranges overlap, returning a description of the
// first violation found, or "" if the buffer is well-formed.
func (r *Receiver) CheckOutOfOrderInvariant() string {
	for i, s := range r.outOfOrder {
		if s.DataSeq() <= r.nextByteExpected {
			return fmt.Sprintf("buffered segment at %d does not exceed next_byte_expected %d", s.DataSeq(), r.nextByteExpected)
		}
		for _, o := range r.outOfOrder[i+1:] {
			if s.DataSeq() < o.EndSeq() && o.DataSeq() < s.EndSeq() {
				return fmt.Sprintf("buffered segments [%d,%d) and [%d,%d) overlap", s.DataSeq(), s.EndSeq(), o.DataSeq(), o.EndSeq())
			}
		}
	}
	return ""
}

// Handle processes one arriving segment, per spec.md §4.F. ACK segments
// (never sent to a receiver in the fixed topology) and in_error segments
// are silently dropped.
func (r *Receiver) Handle(_ protocol.Identity, seg segment.Segment) {
	if seg.InError() || seg.IsAck() {
		return
	}

	if seg.DataSeq() == r.nextByteExpected {
		r.handleInOrder(seg)
		return
	}
	r.handleOutOfOrder(seg)
}

func (r *Receiver) handleInOrder(seg segment.Segment) {
	r.nextByteExpected += seg.Length()

	if len(r.outOfOrder) == 0 {
		r.lastByteReceived = r.nextByteExpected - 1
	} else {
		r.checkBuffered()
	}

	if r.pendingAck == nil {
		ack := segment.NewAck(r.peer, r.nextByteExpected, r.currentRcvWindow, seg.Timestamp())
		r.pendingAck = &ack
		r.armDelayedAck()
	} else {
		updated := segment.NewAck(r.peer, r.nextByteExpected, r.currentRcvWindow, seg.Timestamp())
		r.pendingAck = &updated
	}
}

// checkBuffered sorts the out-of-order buffer and drains every prefix
// segment that now contiguously extends next_byte_expected, per
// spec.md §4.F.
func (r *Receiver) checkBuffered() {
	utils.SortFunc(r.outOfOrder, segment.Less)

	i := 0
	for i < len(r.outOfOrder) && r.outOfOrder[i].DataSeq() == r.nextByteExpected {
		r.nextByteExpected += r.outOfOrder[i].Length()
		i++
	}
	r.outOfOrder = r.outOfOrder[i:]

	r.currentRcvWindow = r.maxRcvWindow - (r.lastByteReceived - r.nextByteExpected)
}

func (r *Receiver) handleOutOfOrder(seg segment.Segment) {
	r.flushPendingAck()

	// A stale duplicate (below next_byte_expected) is only re-ACKed; it is
	// not buffered, since it could never be drained.
	if seg.DataSeq() > r.nextByteExpected {
		r.outOfOrder = append(r.outOfOrder, seg)
		r.lastByteReceived = utils.MaxByteCount(r.lastByteReceived, seg.EndSeq()-1)
	}
	r.currentRcvWindow = r.maxRcvWindow - (r.lastByteReceived - r.nextByteExpected)

	dup := segment.NewAck(r.peer, r.nextByteExpected, r.currentRcvWindow, protocol.NoTimestamp)
	r.sink(dup)
}

// flushPendingAck emits and clears any pending cumulative ACK, cancelling
// its delayed-ACK timer. Used both by the out-of-order path (spec.md
// §4.F) and by TimerExpired.
func (r *Receiver) flushPendingAck() {
	if r.pendingAck == nil {
		return
	}
	ack := *r.pendingAck
	r.pendingAck = nil
	r.cancelDelayedAck()
	r.sink(ack)
}

// TimerExpired emits and clears the pending cumulative ACK, per spec.md
// §4.F's timer_expired(2) handler.
func (r *Receiver) TimerExpired(kind protocol.TimerKind) {
	if kind != protocol.TimerDelayedAck {
		return
	}
	r.delayedAckHandle = nil
	if r.pendingAck == nil {
		return
	}
	ack := *r.pendingAck
	r.pendingAck = nil
	r.sink(ack)
}

func (r *Receiver) armDelayedAck() {
	h, err := r.clock.SetTimeoutAt(simclock.Timer{
		FireTime: r.clock.CurrentTime(),
		Kind:     protocol.TimerDelayedAck,
		Owner:    r,
	})
	if err != nil {
		r.log.Warn("failed to arm delayed-ack timer", zap.Error(err))
		return
	}
	r.delayedAckHandle = &h
}

func (r *Receiver) cancelDelayedAck() {
	if r.delayedAckHandle == nil {
		return
	}
	if err := r.clock.CancelTimeout(*r.delayedAckHandle); err != nil {
		r.log.Warn("failed to cancel delayed-ack timer", zap.Error(err))
	}
	r.delayedAckHandle = nil
}
