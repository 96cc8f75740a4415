package endpoint_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/tcpsim/tcpsim/endpoint"
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/simclock"
)

type fakeSender struct {
	handled []segment.Segment
	sent    []*protocol.ByteCount
	fired   []protocol.TimerKind
}

func (s *fakeSender) TimerExpired(kind protocol.TimerKind) { s.fired = append(s.fired, kind) }
func (s *fakeSender) Handle(ack segment.Segment)            { s.handled = append(s.handled, ack) }
func (s *fakeSender) Send(newData *protocol.ByteCount)      { s.sent = append(s.sent, newData) }

type fakeReceiver struct {
	handled []segment.Segment
	srcs    []protocol.Identity
	fired   []protocol.TimerKind
}

func (r *fakeReceiver) TimerExpired(kind protocol.TimerKind) { r.fired = append(r.fired, kind) }
func (r *fakeReceiver) Handle(src protocol.Identity, seg segment.Segment) {
	r.srcs = append(r.srcs, src)
	r.handled = append(r.handled, seg)
}

type fakeClock struct {
	checked []simclock.Component
}

func (c *fakeClock) CheckExpiredTimers(component simclock.Component) {
	c.checked = append(c.checked, component)
}

var _ = Describe("Endpoint dispatch", func() {
	It("routes an inbound ACK to the sender, never the receiver", func() {
		sender := &fakeSender{}
		rcv := &fakeReceiver{}
		ep := endpoint.New(&fakeClock{}, sender, rcv)

		ack := segment.NewAck(protocol.IdentitySenderHost, 128, 65536, 0)
		ep.Handle(protocol.IdentityReceiverHost, ack)

		Expect(sender.handled).To(Equal([]segment.Segment{ack}))
		Expect(rcv.handled).To(BeEmpty())
	})

	It("routes an inbound data segment to the receiver, never the sender", func() {
		sender := &fakeSender{}
		rcv := &fakeReceiver{}
		ep := endpoint.New(&fakeClock{}, sender, rcv)

		data := segment.NewData(protocol.IdentityReceiverHost, 0, 128, 65536, 0)
		ep.Handle(protocol.IdentitySenderHost, data)

		Expect(rcv.handled).To(Equal([]segment.Segment{data}))
		Expect(rcv.srcs).To(Equal([]protocol.Identity{protocol.IdentitySenderHost}))
		Expect(sender.handled).To(BeEmpty())
	})

	It("drops a zero-length, non-ACK segment without dispatching it anywhere", func() {
		sender := &fakeSender{}
		rcv := &fakeReceiver{}
		ep := endpoint.New(&fakeClock{}, sender, rcv)

		ep.Handle(protocol.IdentitySenderHost, segment.Segment{})

		Expect(sender.handled).To(BeEmpty())
		Expect(rcv.handled).To(BeEmpty())
	})

	It("checks the sender's timers then lets it send with no new data on ProcessSender", func() {
		sender := &fakeSender{}
		clock := &fakeClock{}
		ep := endpoint.New(clock, sender, nil)

		ep.Process(endpoint.ProcessSender)

		Expect(clock.checked).To(HaveLen(1))
		Expect(clock.checked[0]).To(BeIdenticalTo(sender))
		Expect(sender.sent).To(Equal([]*protocol.ByteCount{nil}))
	})

	It("only checks the receiver's timers on ProcessReceiver", func() {
		rcv := &fakeReceiver{}
		clock := &fakeClock{}
		ep := endpoint.New(clock, nil, rcv)

		ep.Process(endpoint.ProcessReceiver)

		Expect(clock.checked).To(HaveLen(1))
		Expect(clock.checked[0]).To(BeIdenticalTo(rcv))
	})

	It("treats a nil sender or receiver as a no-op rather than panicking", func() {
		clock := &fakeClock{}
		ep := endpoint.New(clock, nil, nil)

		Expect(func() {
			ep.Send(128)
			ep.Handle(protocol.IdentitySenderHost, segment.NewAck(protocol.IdentitySenderHost, 0, 65536, 0))
			ep.Process(endpoint.ProcessSender)
			ep.Process(endpoint.ProcessReceiver)
		}).NotTo(Panic())

		Expect(clock.checked).To(BeEmpty())
	})
})
