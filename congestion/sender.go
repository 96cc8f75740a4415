package congestion

import (
	"go.uber.org/zap"

	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/simclock"
	"github.com/tcpsim/tcpsim/utils"
)

// SegmentSink is the callback a Sender uses to hand a freshly built or
// retransmitted segment to the topology. In the full simulator this is
// the sender-side endpoint's link.
type SegmentSink func(segment.Segment)

// Clock is the timer-wheel surface a Sender needs: the current tick plus
// arming/cancelling its own timers. Accepting this narrow interface
// rather than a concrete *simclock.Clock lets unit tests substitute a
// hand-written mock, grounded on the teacher's own mockackhandler
// pattern against ackhandler.SentPacketHandler.
type Clock interface {
	CurrentTime() protocol.Tick
	SetTimeoutAt(timer simclock.Timer) (simclock.Handle, error)
	CancelTimeout(h simclock.Handle) error
}

// Sender implements the TCP sender state machine (spec component G): slow
// start, congestion avoidance, and (for Reno/NewReno) fast recovery, with
// per-variant RTO and fast-retransmit reactions.
type Sender struct {
	variant Variant
	mss     protocol.ByteCount
	peer    protocol.Identity

	clock Clock
	rto   *RTOEstimator
	sink  SegmentSink
	log   *zap.Logger

	lastByteSent           protocol.ByteCount
	lastByteAcked          protocol.ByteCount
	congWindow             protocol.ByteCount
	ssThresh               protocol.ByteCount
	dupAckCount            int
	rcvWindow              protocol.ByteCount
	lastByteSentBefore3Dup protocol.ByteCount
	firstPartialAck        bool
	state                  senderState

	remaining protocol.ByteCount
	unacked   []segment.Segment

	rtoHandle  *simclock.Handle
	idleHandle *simclock.Handle

	// OnRetransmit, if set, is called once per segment retransmission
	// (fast-retransmit, partial-ACK, or RTO), for the caller's metrics.
	OnRetransmit func()
}

// NewSender constructs a Sender in its initial state, per spec.md §3.
func NewSender(variant Variant, mss protocol.ByteCount, peer protocol.Identity, clock Clock, rto *RTOEstimator, sink SegmentSink, log *zap.Logger) *Sender {
	return &Sender{
		variant:                variant,
		mss:                    mss,
		peer:                   peer,
		clock:                  clock,
		rto:                    rto,
		sink:                   sink,
		log:                    log,
		lastByteSent:           protocol.NoSequence,
		lastByteAcked:          protocol.NoSequence,
		congWindow:             mss,
		ssThresh:               protocol.DefaultSSThresh,
		rcvWindow:              protocol.DefaultRecvWindow,
		lastByteSentBefore3Dup: protocol.NoSequence,
		state:                  StateSlowStart,
	}
}

// Variant returns the sender's congestion-control variant.
func (s *Sender) Variant() Variant { return s.variant }

// State returns the sender's current congestion-control state.
func (s *Sender) State() senderState { return s.state }

// CongWindow returns the current congestion window in bytes.
func (s *Sender) CongWindow() protocol.ByteCount { return s.congWindow }

// SSThresh returns the current slow-start threshold in bytes.
func (s *Sender) SSThresh() protocol.ByteCount { return s.ssThresh }

// FlightSize returns last_byte_sent - last_byte_acked.
func (s *Sender) FlightSize() protocol.ByteCount { return s.lastByteSent - s.lastByteAcked }

// LastByteAcked returns the highest fully-acknowledged byte index.
func (s *Sender) LastByteAcked() protocol.ByteCount { return s.lastByteAcked }

// LastByteSent returns the highest byte index handed to the sink so far.
func (s *Sender) LastByteSent() protocol.ByteCount { return s.lastByteSent }

// EffectiveWindow returns min(cong_window, rcv_window) - flight, floored
// at 0 — the "effective window" reported in the per-tick metrics row.
func (s *Sender) EffectiveWindow() protocol.ByteCount {
	return utils.MaxByteCount(0, utils.MinByteCount(s.congWindow, s.rcvWindow)-s.FlightSize())
}

// RTOInterval returns the sender's current backed-off RTO interval.
func (s *Sender) RTOInterval() protocol.Tick { return s.rto.GetTimeoutInterval() }

// Send appends newData (if non-nil) to the unsent byte stream, then
// transmits as many full-MSS segments as the effective window and
// remaining data allow, per spec.md §4.G.
func (s *Sender) Send(newData *protocol.ByteCount) {
	now := s.clock.CurrentTime()
	if newData != nil {
		s.remaining += *newData
		s.cancelIdle()
	}

	effective := s.EffectiveWindow()
	burstBytes := utils.MinByteCount(effective, s.remaining)
	burst := burstBytes / s.mss

	for i := protocol.ByteCount(0); i < burst; i++ {
		seg := segment.NewData(s.peer, s.lastByteSent+1, s.mss, 0, now)
		s.unacked = append(s.unacked, seg)
		s.lastByteSent += s.mss
		s.remaining -= s.mss
		s.sink(seg)
	}

	if burst > 0 && s.rtoHandle == nil {
		s.armRTO(now)
	}

	if s.remaining == 0 && s.FlightSize() == 0 {
		s.armIdle(now)
	}
}

// Handle processes an inbound ACK segment, per spec.md §4.G.
func (s *Sender) Handle(ack segment.Segment) {
	now := s.clock.CurrentTime()
	s.rcvWindow = ack.RecvWindow()

	if ack.AckSeq() > s.lastByteAcked+1 {
		s.handleNewAck(now, ack)
	} else {
		stateTable[s.state].handleDupAck(s)
	}
}

func (s *Sender) handleNewAck(now protocol.Tick, ack segment.Segment) {
	prev := s.lastByteAcked
	s.lastByteAcked = ack.AckSeq() - 1

	acked := s.lastByteAcked - prev
	samples := int(acked / s.mss)
	if samples < 1 {
		samples = 1
	}
	for i := 0; i < samples; i++ {
		s.rto.UpdateRTT(now, ack.Timestamp())
	}

	s.congWindow = stateTable[s.state].calcCwndOnNewAck(s, ack.AckSeq(), prev)
	s.dupAckCount = 0
	s.state = stateTable[s.state].nextStateAfterNewAck(s)

	if s.lastByteSentBefore3Dup != protocol.NoSequence && s.lastByteSentBefore3Dup <= s.lastByteAcked {
		s.lastByteSentBefore3Dup = protocol.NoSequence
	}

	s.trimAcked()
	s.rearmAfterNewAck(now)
}

// TimerExpired reacts to the RTO and idle-connection timers, per
// spec.md §4.G.
func (s *Sender) TimerExpired(kind protocol.TimerKind) {
	now := s.clock.CurrentTime()
	switch kind {
	case protocol.TimerRTO:
		s.rtoHandle = nil
		hooksByVariant[s.variant].onExpiredRTO(s)
		s.congWindow = s.mss
		s.rto.TimerBackoff()
		s.retransmitOldest()
		s.state = StateSlowStart
		s.dupAckCount = 0
		s.lastByteSentBefore3Dup = protocol.NoSequence
		s.armRTO(now)
	case protocol.TimerIdleConnection:
		s.idleHandle = nil
		s.congWindow = s.mss
		s.state = StateSlowStart
		s.dupAckCount = 0
		s.lastByteSentBefore3Dup = protocol.NoSequence
	}
}

func (s *Sender) retransmitOldest() {
	if len(s.unacked) == 0 {
		return
	}
	retransmitted := s.unacked[0].AsRetransmission()
	s.unacked[0] = retransmitted
	s.sink(retransmitted)
	if s.OnRetransmit != nil {
		s.OnRetransmit()
	}
}

func (s *Sender) trimAcked() {
	i := 0
	for i < len(s.unacked) && s.unacked[i].EndSeq()-1 <= s.lastByteAcked {
		i++
	}
	s.unacked = s.unacked[i:]
}

func (s *Sender) rearmAfterNewAck(now protocol.Tick) {
	if s.FlightSize() > 0 {
		s.cancelRTO()
		s.armRTO(now)
	} else {
		s.cancelRTO()
	}
}

func (s *Sender) armRTO(now protocol.Tick) {
	h, err := s.clock.SetTimeoutAt(simclock.Timer{
		FireTime: now + s.rto.GetTimeoutInterval(),
		Kind:     protocol.TimerRTO,
		Owner:    s,
	})
	if err != nil {
		s.log.Warn("failed to arm RTO timer", zap.Error(err))
		return
	}
	s.rtoHandle = &h
}

func (s *Sender) cancelRTO() {
	if s.rtoHandle == nil {
		return
	}
	if err := s.clock.CancelTimeout(*s.rtoHandle); err != nil {
		s.log.Warn("failed to cancel RTO timer", zap.Error(err))
	}
	s.rtoHandle = nil
}

func (s *Sender) armIdle(now protocol.Tick) {
	if s.idleHandle != nil {
		return
	}
	// The spec doesn't give an idle-timeout duration; one backed-off RTO
	// interval of inactivity before resetting to Slow-Start matches
	// RFC 2861's "restart window" guidance — see DESIGN.md.
	h, err := s.clock.SetTimeoutAt(simclock.Timer{
		FireTime: now + s.rto.GetTimeoutInterval(),
		Kind:     protocol.TimerIdleConnection,
		Owner:    s,
	})
	if err != nil {
		s.log.Warn("failed to arm idle timer", zap.Error(err))
		return
	}
	s.idleHandle = &h
}

func (s *Sender) cancelIdle() {
	if s.idleHandle == nil {
		return
	}
	if err := s.clock.CancelTimeout(*s.idleHandle); err != nil {
		s.log.Warn("failed to cancel idle timer", zap.Error(err))
	}
	s.idleHandle = nil
}
