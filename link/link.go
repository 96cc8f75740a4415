// Package link implements the full-duplex FIFO link between two nodes
// (spec component D): per-packet transmission+propagation delay, with
// delivery order preserved via a non-decreasing per-direction delay
// invariant.
package link

import (
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/qerr"
	"github.com/tcpsim/tcpsim/segment"
)

// ProcessMode selects which direction(s) Process drains, per spec.md
// §4.D.
type ProcessMode int

const (
	// ProcessBoth drains both directions.
	ProcessBoth ProcessMode = iota
	// ProcessForward drains only n1 -> n2.
	ProcessForward
	// ProcessBackward drains only n2 -> n1.
	ProcessBackward
)

// Receiver is anything that can accept a delivered segment from a link.
type Receiver interface {
	Handle(src protocol.Identity, pkt segment.Segment)
}

type inFlight struct {
	pkt            segment.Segment
	remainingDelay protocol.Tick
}

// Link connects exactly two named endpoints, n1 and n2, with independent
// FIFO queues in each direction.
type Link struct {
	n1, n2 protocol.Identity
	dst1   Receiver // receives n1 -> n2 traffic (i.e. is n2's handler)
	dst2   Receiver // receives n2 -> n1 traffic (i.e. is n1's handler)

	propagation, transmission protocol.Tick

	queueN1ToN2 []inFlight
	queueN2ToN1 []inFlight

	clock Clock

	lastProcessBoth, lastProcessFwd, lastProcessBack protocol.Tick
}

// Clock is the minimal clock surface Link needs: the current tick.
type Clock interface {
	CurrentTime() protocol.Tick
}

// New builds a Link between n1 and n2. dst1 receives segments sent by n1
// (i.e. it is n2's inbound handler); dst2 receives segments sent by n2.
func New(n1, n2 protocol.Identity, dst1, dst2 Receiver, propagation, transmission protocol.Tick, clock Clock) *Link {
	return &Link{
		n1: n1, n2: n2,
		dst1: dst1, dst2: dst2,
		propagation:  propagation,
		transmission: transmission,
		clock:        clock,
	}
}

// Send enqueues pkt onto the direction determined by which endpoint
// equals src, per spec.md §4.D.
func (l *Link) Send(src protocol.Identity, pkt segment.Segment) error {
	delay := l.propagation + l.transmission

	switch src {
	case l.n1:
		l.queueN1ToN2 = append(l.queueN1ToN2, inFlight{pkt: pkt, remainingDelay: capDelay(delay, l.queueN1ToN2)})
	case l.n2:
		l.queueN2ToN1 = append(l.queueN2ToN1, inFlight{pkt: pkt, remainingDelay: capDelay(delay, l.queueN2ToN1)})
	default:
		return qerr.New(qerr.NoRoute, "link has no endpoint %s", src)
	}
	return nil
}

// capDelay implements spec.md §3's link-state rule: on enqueue, delay is
// set to propagation+transmission if it would exceed the preceding
// packet's remaining delay; otherwise it inherits the predecessor's delay
// (a coarse serialization approximation that keeps delivery order equal
// to enqueue order).
func capDelay(delay protocol.Tick, queue []inFlight) protocol.Tick {
	if len(queue) == 0 {
		return delay
	}
	prev := queue[len(queue)-1].remainingDelay
	if delay > prev {
		return delay
	}
	return prev
}

// Process drains packets whose remaining delay has elapsed since the
// mode-specific last-process time, delivering each via dst.Handle.
func (l *Link) Process(mode ProcessMode) {
	now := l.clock.CurrentTime()

	switch mode {
	case ProcessBoth:
		elapsed := now - l.lastProcessBoth
		l.queueN1ToN2 = drain(l.queueN1ToN2, elapsed, l.n1, l.dst1)
		l.queueN2ToN1 = drain(l.queueN2ToN1, elapsed, l.n2, l.dst2)
		l.lastProcessBoth = now
	case ProcessForward:
		elapsed := now - l.lastProcessFwd
		l.queueN1ToN2 = drain(l.queueN1ToN2, elapsed, l.n1, l.dst1)
		l.lastProcessFwd = now
	case ProcessBackward:
		elapsed := now - l.lastProcessBack
		l.queueN2ToN1 = drain(l.queueN2ToN1, elapsed, l.n2, l.dst2)
		l.lastProcessBack = now
	}
}

func drain(queue []inFlight, elapsed protocol.Tick, src protocol.Identity, dst Receiver) []inFlight {
	// elapsed ticks have passed for every queued packet since this
	// direction was last checked, regardless of how far down the queue
	// delivery actually reaches this round.
	for i := range queue {
		queue[i].remainingDelay -= elapsed
	}

	i := 0
	for i < len(queue) && queue[i].remainingDelay <= 0 {
		dst.Handle(src, queue[i].pkt)
		i++
	}
	return queue[i:]
}

// TransmissionTime returns the link's per-packet transmission time, used
// by the router to compute inbound/outbound rate-mismatch ratios.
func (l *Link) TransmissionTime() protocol.Tick { return l.transmission }

// Len returns the number of packets currently queued n1->n2 and n2->n1,
// for testing and verbose tracing.
func (l *Link) Len() (forward, backward int) {
	return len(l.queueN1ToN2), len(l.queueN2ToN1)
}
