// Package endpoint implements the per-host orchestrator (spec component
// H): it fans inbound segments out to the sender or receiver and drives
// their per-tick timer checks, mirroring the teacher lineage's session
// struct dispatching inbound frames to the right stream/flow-control
// handler rather than processing them inline.
package endpoint

import (
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/simclock"
)

// ProcessMode selects which half of the endpoint's per-tick work runs,
// per spec.md §4.H.
type ProcessMode int

const (
	// ProcessSender checks the sender's expired timers, then gives it a
	// chance to send with no new application data.
	ProcessSender ProcessMode = iota + 1
	// ProcessReceiver checks the receiver's expired timers only.
	ProcessReceiver
)

// Clock is the timer-wheel surface an Endpoint needs: checking a
// component's expired timers every tick.
type Clock interface {
	CheckExpiredTimers(component simclock.Component)
}

// Sender is the narrow surface an Endpoint needs from a congestion.Sender:
// accept inbound ACKs, accept data to send, and own its own timers.
// Accepting this interface rather than the concrete *congestion.Sender
// lets unit tests substitute a gomock-style fake, grounded on the
// teacher's own ackhandler.SentPacketHandler mocking pattern.
type Sender interface {
	simclock.Component
	Handle(ack segment.Segment)
	Send(newData *protocol.ByteCount)
}

// Receiver is the narrow surface an Endpoint needs from a
// receiver.Receiver: accept inbound segments and own its own timers.
type Receiver interface {
	simclock.Component
	Handle(src protocol.Identity, seg segment.Segment)
}

// Endpoint dispatches inbound segments to a Sender (ACKs) or a Receiver
// (data), and drives both components' timer checks every tick.
type Endpoint struct {
	clock    Clock
	sender   Sender
	receiver Receiver
}

// New builds an Endpoint wired to the given sender and receiver. Either
// may be nil: the sender-side host in the fixed topology has no receiver,
// and vice versa.
func New(clock Clock, sender Sender, rcv Receiver) *Endpoint {
	return &Endpoint{clock: clock, sender: sender, receiver: rcv}
}

// Send forwards newData to the sender, per spec.md §4.H's send(_, pkt).
func (e *Endpoint) Send(newData protocol.ByteCount) {
	if e.sender == nil {
		return
	}
	e.sender.Send(&newData)
}

// Handle routes an inbound segment to the sender (ACKs) or the receiver
// (data segments), per spec.md §4.H.
func (e *Endpoint) Handle(src protocol.Identity, seg segment.Segment) {
	if seg.IsAck() {
		if e.sender != nil {
			e.sender.Handle(seg)
		}
		return
	}
	if seg.Length() > 0 && e.receiver != nil {
		e.receiver.Handle(src, seg)
	}
}

// Process runs this endpoint's per-tick timer-check-then-work step, per
// spec.md §4.H.
func (e *Endpoint) Process(mode ProcessMode) {
	switch mode {
	case ProcessSender:
		if e.sender == nil {
			return
		}
		e.clock.CheckExpiredTimers(e.sender)
		e.sender.Send(nil)
	case ProcessReceiver:
		if e.receiver == nil {
			return
		}
		e.clock.CheckExpiredTimers(e.receiver)
	}
}
