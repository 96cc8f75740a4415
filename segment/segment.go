// Package segment implements the Segment model: the immutable-after-
// creation unit carried by links and processed by the router, receiver,
// and sender. It is grounded on the teacher lineage's frames.AckFrame —
// a small, field-for-field value type with constructors that enforce its
// invariants rather than a mutable builder.
package segment

import "github.com/tcpsim/tcpsim/protocol"

// Segment is a data or ACK unit in flight between two nodes. Once built it
// is never mutated; it is a value type, so the receiver's out-of-order
// buffer holds its own copy, and the sender never mutates a segment it has
// already handed to a link.
type Segment struct {
	dest protocol.Identity

	dataSeq protocol.ByteCount // byte index of first carried byte, -1 if no data
	length  protocol.ByteCount // data length in bytes

	ackSeq protocol.ByteCount // next byte expected at receiver, -1 if not an ACK
	isAck  bool

	recvWindow protocol.ByteCount // advertised receive window

	timestamp protocol.Tick // origin tick; protocol.NoTimestamp marks a retransmission

	inError bool // marks a segment the receiver must silently drop
}

// NewData constructs a data segment. dataSeq must be >= 0 and length must
// be > 0; NewData panics otherwise, since every internal call site derives
// both from sender-owned counters that can't produce a bad pair.
func NewData(dest protocol.Identity, dataSeq, length protocol.ByteCount, recvWindow protocol.ByteCount, timestamp protocol.Tick) Segment {
	if dataSeq < 0 || length <= 0 {
		panic("segment: data segment requires dataSeq >= 0 and length > 0")
	}
	return Segment{
		dest:       dest,
		dataSeq:    dataSeq,
		length:     length,
		ackSeq:     protocol.NoSequence,
		isAck:      false,
		recvWindow: recvWindow,
		timestamp:  timestamp,
	}
}

// NewAck constructs a zero-payload ACK segment. ackSeq must be >= 0.
func NewAck(dest protocol.Identity, ackSeq protocol.ByteCount, recvWindow protocol.ByteCount, timestamp protocol.Tick) Segment {
	if ackSeq < 0 {
		panic("segment: ack segment requires ackSeq >= 0")
	}
	return Segment{
		dest:       dest,
		dataSeq:    protocol.NoSequence,
		length:     0,
		ackSeq:     ackSeq,
		isAck:      true,
		recvWindow: recvWindow,
		timestamp:  timestamp,
	}
}

// MarkInError returns a copy of s marked as a corrupted/lost segment. The
// router uses this to model loss without actually discarding the segment
// object, so the link's delay bookkeeping stays untouched; the receiver
// silently drops anything with InError set.
func (s Segment) MarkInError() Segment {
	s.inError = true
	return s
}

// AsRetransmission returns a copy of s with its timestamp cleared to
// protocol.NoTimestamp, per the spec's rule that retransmissions never
// feed an RTT sample.
func (s Segment) AsRetransmission() Segment {
	s.timestamp = protocol.NoTimestamp
	return s
}

func (s Segment) Dest() protocol.Identity     { return s.dest }
func (s Segment) DataSeq() protocol.ByteCount { return s.dataSeq }
func (s Segment) Length() protocol.ByteCount  { return s.length }
func (s Segment) AckSeq() protocol.ByteCount  { return s.ackSeq }
func (s Segment) IsAck() bool                 { return s.isAck }
func (s Segment) RecvWindow() protocol.ByteCount { return s.recvWindow }
func (s Segment) Timestamp() protocol.Tick    { return s.timestamp }
func (s Segment) InError() bool               { return s.inError }

// EndSeq returns the byte index one past the last byte this data segment
// carries. Only meaningful when !IsAck().
func (s Segment) EndSeq() protocol.ByteCount {
	return s.dataSeq + s.length
}

// Less orders two data segments by data sequence number, for use with
// utils.SortFunc on the receiver's out-of-order buffer.
func Less(a, b Segment) bool {
	return a.dataSeq < b.dataSeq
}
