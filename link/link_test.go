package link_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/tcpsim/tcpsim/link"
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/segment"
)

type fakeClock struct{ now protocol.Tick }

func (c *fakeClock) CurrentTime() protocol.Tick { return c.now }

type fakeReceiver struct {
	received []segment.Segment
}

func (r *fakeReceiver) Handle(_ protocol.Identity, pkt segment.Segment) {
	r.received = append(r.received, pkt)
}

var _ = Describe("Link delay", func() {
	It("holds a packet until its full propagation+transmission delay has elapsed", func() {
		clock := &fakeClock{}
		dst1, dst2 := &fakeReceiver{}, &fakeReceiver{}
		l := link.New(protocol.IdentitySenderHost, protocol.IdentityRouter, dst1, dst2, 2, 1, clock)

		Expect(l.Send(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityRouter, 0, 128, 0, 0))).To(Succeed())

		clock.now = 1
		l.Process(link.ProcessBoth)
		Expect(dst1.received).To(BeEmpty())

		clock.now = 2
		l.Process(link.ProcessBoth)
		Expect(dst1.received).To(BeEmpty())

		clock.now = 3
		l.Process(link.ProcessBoth)
		Expect(dst1.received).To(HaveLen(1))
	})

	It("delivers queued packets in FIFO order", func() {
		clock := &fakeClock{}
		dst1, dst2 := &fakeReceiver{}, &fakeReceiver{}
		l := link.New(protocol.IdentitySenderHost, protocol.IdentityRouter, dst1, dst2, 1, 1, clock)

		for i := 0; i < 3; i++ {
			Expect(l.Send(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityRouter, protocol.ByteCount(i*128), 128, 0, 0))).To(Succeed())
		}

		clock.now = 5
		l.Process(link.ProcessBoth)

		Expect(dst1.received).To(HaveLen(3))
		Expect(dst1.received[0].DataSeq()).To(Equal(protocol.ByteCount(0)))
		Expect(dst1.received[1].DataSeq()).To(Equal(protocol.ByteCount(128)))
		Expect(dst1.received[2].DataSeq()).To(Equal(protocol.ByteCount(256)))
	})

	It("keeps the two directions, and Process's three modes, on independent cursors", func() {
		clock := &fakeClock{}
		dst1, dst2 := &fakeReceiver{}, &fakeReceiver{}
		l := link.New(protocol.IdentitySenderHost, protocol.IdentityRouter, dst1, dst2, 0, 1, clock)

		Expect(l.Send(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityRouter, 0, 128, 0, 0))).To(Succeed())
		Expect(l.Send(protocol.IdentityRouter, segment.NewAck(protocol.IdentitySenderHost, 128, 65536, 0))).To(Succeed())

		clock.now = 1
		l.Process(link.ProcessForward)
		Expect(dst1.received).To(HaveLen(1))
		Expect(dst2.received).To(BeEmpty())

		l.Process(link.ProcessBackward)
		Expect(dst2.received).To(HaveLen(1))
	})

	It("rejects a send from an identity that is neither endpoint", func() {
		clock := &fakeClock{}
		dst1, dst2 := &fakeReceiver{}, &fakeReceiver{}
		l := link.New(protocol.IdentitySenderHost, protocol.IdentityRouter, dst1, dst2, 1, 1, clock)

		err := l.Send(protocol.IdentityReceiverHost, segment.NewData(protocol.IdentityRouter, 0, 128, 0, 0))
		Expect(err).To(HaveOccurred())
	})
})
