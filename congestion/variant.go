package congestion

import (
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/utils"
)

// Variant selects which TCP congestion-control variant a Sender runs.
// This enumeration plus the hook table below replaces the teacher-derived
// source's subclass-per-algorithm design (spec.md §9): one Sender struct,
// branching on Variant, exactly as the teacher's own cubicSender branches
// on its `reno bool` field rather than subclassing for Reno vs Cubic.
type Variant int

const (
	Tahoe Variant = iota
	Reno
	NewReno
)

func (v Variant) String() string {
	switch v {
	case Tahoe:
		return "Tahoe"
	case Reno:
		return "Reno"
	case NewReno:
		return "NewReno"
	default:
		return "Unknown"
	}
}

// ParseVariant maps a CLI argument to a Variant. The zero value and a
// boolean mirror the "(value, ok)" idiom used throughout the teacher
// lineage's protocol package accessors.
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "Tahoe":
		return Tahoe, true
	case "Reno":
		return Reno, true
	case "NewReno":
		return NewReno, true
	default:
		return 0, false
	}
}

// stateAfterThreeDupAcks is the per-variant constant target state reached
// once dup_ack_count hits the fast-retransmit threshold — a fixed table
// entry rather than a mutable back-pointer between state objects (spec.md
// §9).
var stateAfterThreeDupAcks = map[Variant]senderState{
	Tahoe:   StateSlowStart,
	Reno:    StateFastRecovery,
	NewReno: StateFastRecovery,
}

// variantHooks holds the two points where Tahoe, Reno, and NewReno
// genuinely diverge: the reaction to an RTO, and the reaction to the
// dup-ack count crossing the fast-retransmit threshold.
type variantHooks struct {
	onExpiredRTO          func(s *Sender)
	onThreeDuplicateAcks  func(s *Sender)
}

func tahoeOnExpiredRTO(s *Sender) {
	s.ssThresh = utils.MaxByteCount(s.congWindow/2, 2*s.mss)
}

func tahoeOnThreeDuplicateAcks(s *Sender) {
	// Only the first reaching of the threshold acts: this hook does not
	// reset dup_ack_count, and handleDupAckNormal invokes it only when the
	// count transitions to 3, so subsequent dup acks in the same run keep
	// incrementing the count with no further effect.
	s.ssThresh = utils.MaxByteCount(floorToMSS(s.congWindow/2, s.mss), 2*s.mss)
	s.congWindow = s.mss
	s.retransmitOldest()
}

func renoOnExpiredRTO(s *Sender) {
	flight := s.lastByteSent - s.lastByteAcked
	s.ssThresh = utils.MaxByteCount(flight/2, 2*s.mss)
}

func renoOnThreeDuplicateAcks(s *Sender) {
	if s.lastByteSentBefore3Dup == protocol.NoSequence {
		s.lastByteSentBefore3Dup = s.lastByteSent
	}
	flight := s.lastByteSent - s.lastByteAcked
	s.ssThresh = utils.MaxByteCount(floorToMSS(flight/2, s.mss), 2*s.mss)
	s.congWindow = utils.MaxByteCount(flight/2, 2*s.mss) + 3*s.mss
	s.retransmitOldest()
}

var hooksByVariant = map[Variant]variantHooks{
	Tahoe: {
		onExpiredRTO:         tahoeOnExpiredRTO,
		onThreeDuplicateAcks: tahoeOnThreeDuplicateAcks,
	},
	Reno: {
		onExpiredRTO:         renoOnExpiredRTO,
		onThreeDuplicateAcks: renoOnThreeDuplicateAcks,
	},
	// NewReno is identical to Reno for both hooks; the two variants only
	// diverge in Fast-Recovery's new-ack handling (see states.go).
	NewReno: {
		onExpiredRTO:         renoOnExpiredRTO,
		onThreeDuplicateAcks: renoOnThreeDuplicateAcks,
	},
}

// floorToMSS rounds v down to the nearest multiple of mss, matching the
// spec's "floor(x to MSS)" phrasing in the ss_thresh formulas.
func floorToMSS(v, mss protocol.ByteCount) protocol.ByteCount {
	return (v / mss) * mss
}
