// Package router implements the bottleneck router (spec component E): a
// drop-tail buffered forwarder with per-output-port rate-mismatch pacing.
package router

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/qerr"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/utils"
)

// Link is the minimal surface the router needs from a link: sending a
// packet, and the link's fixed per-packet transmission time (used to
// compute rate-mismatch ratios and Process's forwarding budget).
type Link interface {
	Send(src protocol.Identity, pkt segment.Segment) error
	TransmissionTime() protocol.Tick
}

// Clock is the minimal clock surface the router needs.
type Clock interface {
	CurrentTime() protocol.Tick
}

type port struct {
	dest             protocol.Identity
	link             Link
	inTransmission   *segment.Segment
	mismatchCount    float64
	maxMismatchRatio float64
}

// Router is a drop-tail buffered forwarder. It owns a forwarding table
// (destination -> output port) and a single shared FIFO buffer, per
// spec.md §3/§4.E.
type Router struct {
	self protocol.Identity

	ports   map[protocol.Identity]*port
	order   []protocol.Identity // insertion order, for deterministic recompute

	buffer         []segment.Segment
	bufferCapacity protocol.ByteCount
	occupancy      protocol.ByteCount

	clock  Clock
	log    *zap.Logger
	tracer *utils.Tracer

	lastProcessTime protocol.Tick

	lossRate float64
	rng      *rand.Rand

	OnDrop func(pkt segment.Segment)
	OnLoss func(pkt segment.Segment)
}

// New builds an empty Router with the given shared buffer capacity.
// lossRate is the independent per-data-segment probability of being
// marked in_error on forward, drawn from rng (SPEC_FULL.md §6).
func New(self protocol.Identity, bufferCapacity protocol.ByteCount, lossRate float64, rng *rand.Rand, clock Clock, log *zap.Logger, tracer *utils.Tracer) *Router {
	return &Router{
		self:           self,
		ports:          make(map[protocol.Identity]*port),
		bufferCapacity: bufferCapacity,
		lossRate:       lossRate,
		rng:            rng,
		clock:          clock,
		log:            log,
		tracer:         tracer,
	}
}

// AddForwardingEntry creates an output port forwarding to dst over l, then
// recomputes every port's max-mismatch-ratio across the full port set, per
// spec.md §4.E.
func (r *Router) AddForwardingEntry(dst protocol.Identity, l Link) {
	r.ports[dst] = &port{dest: dst, link: l}
	r.order = append(r.order, dst)
	r.recomputeMismatchRatios()
}

func (r *Router) recomputeMismatchRatios() {
	for _, dst := range r.order {
		p := r.ports[dst]
		max := 1.0
		for _, otherDst := range r.order {
			if otherDst == dst {
				continue
			}
			other := r.ports[otherDst]
			ratio := float64(p.link.TransmissionTime()) / float64(other.link.TransmissionTime())
			if ratio > max {
				max = ratio
			}
		}
		p.maxMismatchRatio = max
	}
}

// Handle processes one arriving packet, per spec.md §4.E. Packets
// addressed to a destination with no forwarding entry are a programmer
// error (qerr.NoRoute); the reference simulator never exercises this path
// since every destination in the fixed topology has an entry.
func (r *Router) Handle(_ protocol.Identity, pkt segment.Segment) {
	p, ok := r.ports[pkt.Dest()]
	if !ok {
		r.log.Error("no route", zap.Error(qerr.New(qerr.NoRoute, "no forwarding entry for %s", pkt.Dest())))
		return
	}

	ratio := p.maxMismatchRatio

	if p.inTransmission == nil {
		if ratio <= 1.0 {
			r.send(p, pkt)
		} else {
			held := pkt
			p.inTransmission = &held
			p.mismatchCount = p.maxMismatchRatio - p.maxMismatchRatio/ratio
		}
	} else {
		r.admit(pkt)
	}

	if p.mismatchCount < 1.0 {
		if p.inTransmission != nil {
			r.send(p, *p.inTransmission)
			p.inTransmission = nil
		}
		if idx := r.firstBufferedFor(p.dest); idx >= 0 {
			promoted := r.removeFromBuffer(idx)
			p.inTransmission = &promoted
		}
		p.mismatchCount = p.maxMismatchRatio
	}

	// Always decrement, even along the branches above that never touched
	// mismatch_count this arrival — preserved byte-for-byte per spec.md
	// §9's note that this may underflow past zero by one decrement.
	p.mismatchCount -= p.maxMismatchRatio / ratio
}

// admit buffers pkt if the shared FIFO buffer has room, else drops it
// (drop-tail).
func (r *Router) admit(pkt segment.Segment) {
	if r.occupancy+pkt.Length() <= r.bufferCapacity {
		r.buffer = append(r.buffer, pkt)
		r.occupancy += pkt.Length()
		return
	}
	if r.OnDrop != nil {
		r.OnDrop(pkt)
	}
	r.tracer.Trace("router drop-tail", zap.Int64("data_seq", int64(pkt.DataSeq())), zap.Int64("length", int64(pkt.Length())))
}

func (r *Router) firstBufferedFor(dest protocol.Identity) int {
	for i, pkt := range r.buffer {
		if pkt.Dest() == dest {
			return i
		}
	}
	return -1
}

func (r *Router) removeFromBuffer(idx int) segment.Segment {
	pkt := r.buffer[idx]
	r.buffer = append(r.buffer[:idx], r.buffer[idx+1:]...)
	r.occupancy -= pkt.Length()
	return pkt
}

// send forwards pkt on p's link, first independently marking data
// segments in_error with probability r.lossRate. ACKs are never dropped
// this way, per spec.md §4.E.
func (r *Router) send(p *port, pkt segment.Segment) {
	if !pkt.IsAck() && r.lossRate > 0 && r.rng.Float64() < r.lossRate {
		pkt = pkt.MarkInError()
		if r.OnLoss != nil {
			r.OnLoss(pkt)
		}
		r.tracer.Trace("segment marked in_error", zap.Int64("data_seq", int64(pkt.DataSeq())))
	}
	if err := p.link.Send(r.self, pkt); err != nil {
		r.log.Warn("link send failed", zap.Error(err))
	}
}

// Process sends whatever is currently in-transmission on every port, then
// opportunistically forwards further buffered packets for that port while
// a transmission-time budget allows, per spec.md §4.E.
func (r *Router) Process() {
	now := r.clock.CurrentTime()
	budget := now - r.lastProcessTime

	for _, dst := range r.order {
		p := r.ports[dst]
		if p.inTransmission != nil {
			r.send(p, *p.inTransmission)
			p.inTransmission = nil
		}

		remaining := budget
		for remaining >= p.link.TransmissionTime() {
			idx := r.firstBufferedFor(dst)
			if idx < 0 {
				break
			}
			pkt := r.removeFromBuffer(idx)
			r.send(p, pkt)
			remaining -= p.link.TransmissionTime()
		}
	}

	r.lastProcessTime = now
}

// Occupancy returns the shared buffer's current occupied bytes.
func (r *Router) Occupancy() protocol.ByteCount { return r.occupancy }

// BufferedLen returns the number of packets currently queued in the
// shared buffer, for testing and verbose tracing.
func (r *Router) BufferedLen() int { return len(r.buffer) }
