package receiver_test

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	mocksimclock "github.com/tcpsim/tcpsim/internal/mocks/simclock"
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/receiver"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/simclock"
)

var _ = Describe("Receiver reordering", func() {
	It("buffers an out-of-order segment, ACKs it immediately, then drains the buffer once the gap closes", func() {
		clock := simclock.NewClock()
		var sunk []segment.Segment
		rcv := receiver.New(protocol.IdentityReceiverHost, 1000, clock,
			func(seg segment.Segment) { sunk = append(sunk, seg) }, zap.NewNop())

		seg2 := segment.NewData(protocol.IdentityReceiverHost, 128, 128, 0, 0)
		rcv.Handle(protocol.IdentitySenderHost, seg2)

		Expect(rcv.BufferedLen()).To(Equal(1))
		Expect(rcv.NextByteExpected()).To(Equal(protocol.ByteCount(0)))
		Expect(sunk).To(HaveLen(1))
		Expect(sunk[0].AckSeq()).To(Equal(protocol.ByteCount(0)))

		seg1 := segment.NewData(protocol.IdentityReceiverHost, 0, 128, 0, 0)
		rcv.Handle(protocol.IdentitySenderHost, seg1)

		Expect(rcv.BufferedLen()).To(Equal(0))
		Expect(rcv.NextByteExpected()).To(Equal(protocol.ByteCount(256)))
		// the cumulative ACK for the now-contiguous run is delayed, not
		// sent inline with Handle.
		Expect(sunk).To(HaveLen(1))

		clock.CheckExpiredTimers(rcv)
		Expect(sunk).To(HaveLen(2))
		Expect(sunk[1].AckSeq()).To(Equal(protocol.ByteCount(256)))
	})

	It("silently drops a segment marked in_error", func() {
		clock := simclock.NewClock()
		var sunk []segment.Segment
		rcv := receiver.New(protocol.IdentityReceiverHost, 1000, clock,
			func(seg segment.Segment) { sunk = append(sunk, seg) }, zap.NewNop())

		bad := segment.NewData(protocol.IdentityReceiverHost, 0, 128, 0, 0).MarkInError()
		rcv.Handle(protocol.IdentitySenderHost, bad)

		Expect(rcv.NextByteExpected()).To(Equal(protocol.ByteCount(0)))
		Expect(rcv.BufferedLen()).To(Equal(0))
		Expect(sunk).To(BeEmpty())
	})
})

var _ = Describe("Receiver delayed ACK", func() {
	It("coalesces back-to-back in-order segments into a single delayed ACK", func() {
		clock := simclock.NewClock()
		var sunk []segment.Segment
		rcv := receiver.New(protocol.IdentityReceiverHost, 1000, clock,
			func(seg segment.Segment) { sunk = append(sunk, seg) }, zap.NewNop())

		rcv.Handle(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityReceiverHost, 0, 128, 0, 0))
		Expect(sunk).To(BeEmpty())

		rcv.Handle(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityReceiverHost, 128, 128, 0, 1))
		Expect(sunk).To(BeEmpty())
		Expect(rcv.NextByteExpected()).To(Equal(protocol.ByteCount(256)))

		clock.CheckExpiredTimers(rcv)
		Expect(sunk).To(HaveLen(1))
		Expect(sunk[0].AckSeq()).To(Equal(protocol.ByteCount(256)))
	})
})

var _ = Describe("Receiver delayed-ACK timer wiring", func() {
	var ctrl *gomock.Controller

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("arms the delayed-ACK timer with the exact owner and fire time, then cancels it on an out-of-order arrival", func() {
		clock := mocksimclock.NewMockClock(ctrl)
		var sunk []segment.Segment
		rcv := receiver.New(protocol.IdentityReceiverHost, 1000, clock,
			func(seg segment.Segment) { sunk = append(sunk, seg) }, zap.NewNop())

		const now protocol.Tick = 3
		const handle simclock.Handle = 7

		clock.EXPECT().CurrentTime().Return(now).Times(1)
		clock.EXPECT().SetTimeoutAt(simclock.Timer{
			FireTime: now,
			Kind:     protocol.TimerDelayedAck,
			Owner:    rcv,
		}).Return(handle, nil)

		rcv.Handle(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityReceiverHost, 0, 128, 0, 0))
		Expect(sunk).To(BeEmpty())

		clock.EXPECT().CancelTimeout(handle).Return(nil)

		// a gap (byte 256 instead of the expected byte 128) forces the
		// pending cumulative ACK to flush and its timer to cancel.
		rcv.Handle(protocol.IdentitySenderHost, segment.NewData(protocol.IdentityReceiverHost, 256, 128, 0, 0))
		Expect(sunk).To(HaveLen(2))
		Expect(sunk[0].AckSeq()).To(Equal(protocol.ByteCount(128)))
	})
})
