package simclock_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/simclock"
)

type fakeOwner struct {
	fired []protocol.TimerKind
}

func (o *fakeOwner) TimerExpired(kind protocol.TimerKind) {
	o.fired = append(o.fired, kind)
}

var _ = Describe("Clock", func() {
	It("advances by a fixed increment per tick", func() {
		c := simclock.NewClock()
		Expect(c.CurrentTime()).To(Equal(protocol.Tick(0)))
		c.Advance()
		c.Advance()
		Expect(c.CurrentTime()).To(Equal(protocol.Tick(2)))
	})

	It("fires a timer only once its fire time has arrived, and only for its owner", func() {
		c := simclock.NewClock()
		owner := &fakeOwner{}
		other := &fakeOwner{}

		_, err := c.SetTimeoutAt(simclock.Timer{FireTime: 2, Kind: protocol.TimerRTO, Owner: owner})
		Expect(err).NotTo(HaveOccurred())
		_, err = c.SetTimeoutAt(simclock.Timer{FireTime: 0, Kind: protocol.TimerRTO, Owner: other})
		Expect(err).NotTo(HaveOccurred())

		c.Advance()
		c.CheckExpiredTimers(owner)
		Expect(owner.fired).To(BeEmpty())

		c.Advance()
		c.CheckExpiredTimers(owner)
		Expect(owner.fired).To(Equal([]protocol.TimerKind{protocol.TimerRTO}))
		Expect(other.fired).To(BeEmpty())
	})

	It("rejects a second timer of the same kind for an owner that already has one armed", func() {
		c := simclock.NewClock()
		owner := &fakeOwner{}

		_, err := c.SetTimeoutAt(simclock.Timer{FireTime: 5, Kind: protocol.TimerRTO, Owner: owner})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.SetTimeoutAt(simclock.Timer{FireTime: 10, Kind: protocol.TimerRTO, Owner: owner})
		Expect(err).To(HaveOccurred())
	})

	It("lets CancelTimeout remove an armed timer before it fires", func() {
		c := simclock.NewClock()
		owner := &fakeOwner{}

		h, err := c.SetTimeoutAt(simclock.Timer{FireTime: 0, Kind: protocol.TimerDelayedAck, Owner: owner})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.HasTimer(owner, protocol.TimerDelayedAck)).To(BeTrue())

		Expect(c.CancelTimeout(h)).To(Succeed())
		Expect(c.HasTimer(owner, protocol.TimerDelayedAck)).To(BeFalse())

		c.CheckExpiredTimers(owner)
		Expect(owner.fired).To(BeEmpty())
	})

	It("rejects cancelling an unknown handle", func() {
		c := simclock.NewClock()
		Expect(c.CancelTimeout(simclock.Handle(999))).To(HaveOccurred())
	})
})
