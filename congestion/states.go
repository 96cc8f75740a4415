package congestion

import "github.com/tcpsim/tcpsim/protocol"

// senderState tags which of the three congestion-control states a Sender
// is in. Fast-Recovery is only ever entered by Reno and NewReno senders.
type senderState int

const (
	StateSlowStart senderState = iota
	StateCongestionAvoidance
	StateFastRecovery
)

func (st senderState) String() string {
	switch st {
	case StateSlowStart:
		return "SlowStart"
	case StateCongestionAvoidance:
		return "CongestionAvoidance"
	case StateFastRecovery:
		return "FastRecovery"
	default:
		return "Unknown"
	}
}

// stateOps is the pure-function table for one state: how it grows cwnd on
// a new ACK, which state follows a new ACK, and how it reacts to a
// duplicate ACK. Collapsing the teacher lineage's cyclic
// SlowStart/CongestionAvoidance/FastRecovery object references (spec.md
// §9) into table lookups keyed by this enum removes the mutable
// back-pointers entirely.
type stateOps struct {
	calcCwndOnNewAck     func(s *Sender, ack, prev protocol.ByteCount) protocol.ByteCount
	nextStateAfterNewAck func(s *Sender) senderState
	handleDupAck         func(s *Sender)
}

var stateTable = map[senderState]stateOps{
	StateSlowStart: {
		calcCwndOnNewAck:     slowStartCalcCwnd,
		nextStateAfterNewAck: slowStartNextState,
		handleDupAck:         handleDupAckNormal,
	},
	StateCongestionAvoidance: {
		calcCwndOnNewAck:     congestionAvoidanceCalcCwnd,
		nextStateAfterNewAck: congestionAvoidanceNextState,
		handleDupAck:         handleDupAckNormal,
	},
	StateFastRecovery: {
		calcCwndOnNewAck:     fastRecoveryCalcCwnd,
		nextStateAfterNewAck: fastRecoveryNextState,
		handleDupAck:         handleDupAckFastRecovery,
	},
}

// --- Slow-Start (spec.md §4.G.1) ---

func slowStartCalcCwnd(s *Sender, ack, prev protocol.ByteCount) protocol.ByteCount {
	if s.lastByteSentBefore3Dup == protocol.NoSequence {
		// Normal slow start: grow by the full cumulative amount acked.
		return s.congWindow + (ack - prev - 1)
	}
	// Slow start after a loss, before full recovery: cumulative ACKs
	// count as exactly one MSS regardless of how many bytes they cover.
	return s.congWindow + s.mss
}

func slowStartNextState(s *Sender) senderState {
	if s.congWindow >= s.ssThresh {
		return StateCongestionAvoidance
	}
	return StateSlowStart
}

// --- Congestion-Avoidance (spec.md §4.G.2) ---

func congestionAvoidanceCalcCwnd(s *Sender, ack, prev protocol.ByteCount) protocol.ByteCount {
	if ack-prev >= s.congWindow {
		return s.congWindow + s.mss
	}
	return s.congWindow + (s.mss*s.mss)/s.congWindow
}

func congestionAvoidanceNextState(s *Sender) senderState {
	if s.congWindow < s.ssThresh {
		return StateSlowStart
	}
	return StateCongestionAvoidance
}

// --- Fast-Recovery (spec.md §4.G.3), Reno/NewReno only ---

func fastRecoveryCalcCwnd(s *Sender, ack, prev protocol.ByteCount) protocol.ByteCount {
	if s.variant == Reno {
		// Any new ACK during Reno Fast-Recovery is treated as "full".
		s.lastByteSentBefore3Dup = protocol.NoSequence
		return s.ssThresh
	}

	// NewReno: Slow-but-Steady, per spec.md §9's retained reference
	// default — every partial ACK (not just the first) re-arms the RTO.
	if ack < s.lastByteSentBefore3Dup {
		// Partial ACK: only part of the data outstanding at loss
		// detection has been covered. Retransmit the new oldest
		// unacknowledged segment and deflate cwnd by what was actually
		// newly acked, crediting back one MSS since the retransmission
		// itself consumes a segment's worth of window.
		s.trimAcked()
		s.retransmitOldest()
		newly := ack - prev
		cwndTmp := s.congWindow - newly
		if newly >= s.mss {
			cwndTmp += s.mss
		}
		return cwndTmp
	}

	// Full ACK: all data outstanding at loss detection is now covered.
	s.lastByteSentBefore3Dup = protocol.NoSequence
	s.firstPartialAck = true
	return s.ssThresh
}

func fastRecoveryNextState(s *Sender) senderState {
	if s.variant == NewReno && s.lastByteSentBefore3Dup != protocol.NoSequence {
		// Partial ACK: stay in Fast-Recovery until fully recovered.
		return StateFastRecovery
	}
	return StateCongestionAvoidance
}

// --- Duplicate-ACK handling ---

// handleDupAckNormal runs in Slow-Start and Congestion-Avoidance: count
// the duplicate, and exactly on the tick the count reaches the
// fast-retransmit threshold, fire the variant's reaction and move to its
// post-3-dup-ack state. Further duplicates beyond the threshold (Tahoe
// only ever sees these, since Reno/NewReno have already left this state
// table entry) leave dup_ack_count incrementing with no further effect.
func handleDupAckNormal(s *Sender) {
	s.dupAckCount++
	if s.dupAckCount == dupAckThreshold {
		hooksByVariant[s.variant].onThreeDuplicateAcks(s)
		s.state = stateAfterThreeDupAcks[s.variant]
	}
}

// handleDupAckFastRecovery runs only in Fast-Recovery (Reno/NewReno):
// each further duplicate inflates cwnd by one MSS and does not count
// toward dup_ack_count.
func handleDupAckFastRecovery(s *Sender) {
	s.congWindow += s.mss
}

// dupAckThreshold is the number of duplicate ACKs that triggers a
// fast retransmit.
const dupAckThreshold = 3
