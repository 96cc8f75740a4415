package router_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/router"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/utils"
)

type fakeLink struct {
	txTime protocol.Tick
	sent   []segment.Segment
}

func (f *fakeLink) Send(_ protocol.Identity, pkt segment.Segment) error {
	f.sent = append(f.sent, pkt)
	return nil
}

func (f *fakeLink) TransmissionTime() protocol.Tick { return f.txTime }

type fakeClock struct{ now protocol.Tick }

func (c *fakeClock) CurrentTime() protocol.Tick { return c.now }

var _ = Describe("Router drop-tail buffering", func() {
	It("holds the first arrival in transmission, buffers what fits, and drops the rest", func() {
		fast := &fakeLink{txTime: 1}
		slow := &fakeLink{txTime: 10}

		rtr := router.New(protocol.IdentityRouter, 256, 0, rand.New(rand.NewSource(1)), &fakeClock{},
			zap.NewNop(), utils.NewTracer(zap.NewNop(), 5, 5))
		rtr.AddForwardingEntry(protocol.IdentitySenderHost, fast)
		rtr.AddForwardingEntry(protocol.IdentityReceiverHost, slow)

		dropped := 0
		rtr.OnDrop = func(segment.Segment) { dropped++ }

		for i := 0; i < 6; i++ {
			pkt := segment.NewData(protocol.IdentityReceiverHost, protocol.ByteCount(i*128), 128, 0, 0)
			rtr.Handle(protocol.IdentitySenderHost, pkt)
		}

		Expect(dropped).To(Equal(3))
		Expect(rtr.BufferedLen()).To(Equal(2))
		Expect(rtr.Occupancy()).To(Equal(protocol.ByteCount(256)))
		Expect(slow.sent).To(BeEmpty())
	})

	It("forwards straight through a port with no rate mismatch", func() {
		a := &fakeLink{txTime: 5}
		b := &fakeLink{txTime: 5}

		rtr := router.New(protocol.IdentityRouter, 256, 0, rand.New(rand.NewSource(1)), &fakeClock{},
			zap.NewNop(), utils.NewTracer(zap.NewNop(), 5, 5))
		rtr.AddForwardingEntry(protocol.IdentitySenderHost, a)
		rtr.AddForwardingEntry(protocol.IdentityReceiverHost, b)

		pkt := segment.NewData(protocol.IdentityReceiverHost, 0, 128, 0, 0)
		rtr.Handle(protocol.IdentitySenderHost, pkt)

		Expect(b.sent).To(HaveLen(1))
		Expect(rtr.BufferedLen()).To(Equal(0))
		Expect(rtr.Occupancy()).To(Equal(protocol.ByteCount(0)))
	})
})

var _ = Describe("Router loss modeling", func() {
	It("never marks an ACK segment in_error regardless of loss rate", func() {
		a := &fakeLink{txTime: 1}
		b := &fakeLink{txTime: 1}

		rtr := router.New(protocol.IdentityRouter, 256, 1.0, rand.New(rand.NewSource(1)), &fakeClock{},
			zap.NewNop(), utils.NewTracer(zap.NewNop(), 5, 5))
		rtr.AddForwardingEntry(protocol.IdentitySenderHost, a)
		rtr.AddForwardingEntry(protocol.IdentityReceiverHost, b)

		ack := segment.NewAck(protocol.IdentityReceiverHost, 128, 65536, 0)
		rtr.Handle(protocol.IdentitySenderHost, ack)

		Expect(b.sent).To(HaveLen(1))
		Expect(b.sent[0].InError()).To(BeFalse())
	})
})
