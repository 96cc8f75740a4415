// Package simulator implements the tick-oriented orchestrator (spec
// component I): it wires the fixed three-node topology, drives the exact
// per-tick control flow from spec.md §2, and renders the stdout report.
package simulator

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcpsim/tcpsim/congestion"
	"github.com/tcpsim/tcpsim/endpoint"
	"github.com/tcpsim/tcpsim/link"
	"github.com/tcpsim/tcpsim/metrics"
	"github.com/tcpsim/tcpsim/protocol"
	"github.com/tcpsim/tcpsim/receiver"
	"github.com/tcpsim/tcpsim/router"
	"github.com/tcpsim/tcpsim/segment"
	"github.com/tcpsim/tcpsim/simclock"
	"github.com/tcpsim/tcpsim/utils"
)

// Runner owns the whole fixed topology and drives it tick by tick.
type Runner struct {
	cfg    Config
	runID  string
	out    io.Writer
	log    *zap.Logger
	mask   utils.ReportMask
	tracer *utils.Tracer
	reg    *metrics.Registry

	clock *simclock.Clock

	link1 *link.Link
	link2 *link.Link
	rtr   *router.Router

	sender   *congestion.Sender
	rcv      *receiver.Receiver
	senderEP *endpoint.Endpoint
	rcvEP    *endpoint.Endpoint

	sawLoss *bool

	// OnTick, if set, is called at the end of every tick's control flow,
	// for tests that need to observe intermediate per-tick state (e.g.
	// the invariants CheckInvariants reports on).
	OnTick func(*Runner)
}

// New builds a Runner wired per spec.md §2/§3/§4 against cfg. variant must
// already be a valid congestion.Variant; the CLI layer resolves and
// validates it (qerr.UnknownVariant is fatal there, per spec.md §7). runID
// correlates this run's log lines with the metrics registry the caller
// built for it (metrics.New(runID, ...)); callers that don't care about
// metrics/log correlation across runs may pass an empty string, and one is
// generated here.
func New(cfg Config, variant congestion.Variant, runID string, out io.Writer, log *zap.Logger, reg *metrics.Registry) *Runner {
	if runID == "" {
		runID = uuid.NewString()
	}
	log = log.With(zap.String("run_id", runID), zap.String("variant", variant.String()))
	mask := utils.ParseReportMask(cfg.ReportLevel)

	clock := simclock.NewClock()
	rtr := router.New(
		protocol.IdentityRouter,
		cfg.RouterBuffer,
		cfg.LossRate,
		rand.New(rand.NewSource(cfg.Seed)),
		clock,
		utils.ComponentLogger(log, "router", mask, utils.ReportRouters),
		utils.NewTracer(utils.ComponentLogger(log, "router", mask, utils.ReportRouters), 5, 5),
	)

	// link1 and link2 are forward-declared so the sender's and receiver's
	// sink closures can capture them before they're built: both links
	// need the sender/receiver endpoints (constructed from sender/rcv) as
	// their Receiver, and sender/rcv need the links as their send target.
	var link1, link2 *link.Link

	rto := congestion.NewRTOEstimator(protocol.TimeIncrement)
	sender := congestion.NewSender(variant, cfg.MSS, protocol.IdentityReceiverHost, clock, rto,
		func(seg segment.Segment) {
			if err := link1.Send(protocol.IdentitySenderHost, seg); err != nil {
				log.Warn("sender link send failed", zap.Error(err))
			}
		},
		utils.ComponentLogger(log, "sender", mask, utils.ReportSenders),
	)

	rcv := receiver.New(protocol.IdentityReceiverHost, cfg.RecvWindow, clock,
		func(seg segment.Segment) {
			if err := link2.Send(protocol.IdentityReceiverHost, seg); err != nil {
				log.Warn("receiver link send failed", zap.Error(err))
			}
		},
		utils.ComponentLogger(log, "receiver", mask, utils.ReportReceivers),
	)

	senderEP := endpoint.New(clock, sender, nil)
	rcvEP := endpoint.New(clock, nil, rcv)

	link1 = link.New(protocol.IdentitySenderHost, protocol.IdentityRouter, rtr, senderEP, cfg.Propagation1, cfg.Transmission1, clock)
	link2 = link.New(protocol.IdentityRouter, protocol.IdentityReceiverHost, rcvEP, rtr, cfg.Propagation2, cfg.Transmission2, clock)

	rtr.AddForwardingEntry(protocol.IdentitySenderHost, link1)
	rtr.AddForwardingEntry(protocol.IdentityReceiverHost, link2)

	rtr.OnDrop = func(segment.Segment) {
		if reg != nil {
			reg.RouterDrops.Inc()
		}
	}
	sawLoss := new(bool)
	sender.OnRetransmit = func() {
		*sawLoss = true
		if reg != nil {
			reg.SegmentsRetransmitted.Inc()
		}
	}

	return &Runner{
		cfg: cfg, runID: runID, out: out, log: log, mask: mask,
		tracer: utils.NewTracer(log, 5, 5), reg: reg,
		clock: clock, link1: link1, link2: link2, rtr: rtr,
		sender: sender, rcv: rcv, senderEP: senderEP, rcvEP: rcvEP,
		sawLoss: sawLoss,
	}
}

// Sender exposes the runner's sender, for tests that assert on end-of-run
// state (e.g. the cumulative-ACK law).
func (r *Runner) Sender() *congestion.Sender { return r.sender }

// Receiver exposes the runner's receiver, for the same reason.
func (r *Runner) Receiver() *receiver.Receiver { return r.rcv }

// CheckInvariants evaluates spec.md §8's six per-tick invariants against
// the runner's current state, returning a description of each one that
// does not hold. An empty slice means every invariant holds.
func (r *Runner) CheckInvariants() []string {
	var violations []string
	mss := r.cfg.MSS

	if w := r.rcv.CurrentRcvWindow(); w < 0 || w > r.rcv.MaxRcvWindow() {
		violations = append(violations, fmt.Sprintf("rcv window %d out of [0,%d]", w, r.rcv.MaxRcvWindow()))
	}
	if r.sender.LastByteAcked() > r.sender.LastByteSent() {
		violations = append(violations, fmt.Sprintf("last_byte_acked %d > last_byte_sent %d", r.sender.LastByteAcked(), r.sender.LastByteSent()))
	}
	if r.sender.CongWindow() < mss {
		violations = append(violations, fmt.Sprintf("cong_window %d < MSS %d", r.sender.CongWindow(), mss))
	}
	if *r.sawLoss && r.sender.SSThresh() < 2*mss {
		violations = append(violations, fmt.Sprintf("ss_thresh %d < 2*MSS after a loss event", r.sender.SSThresh()))
	}
	if occ := r.rtr.Occupancy(); occ > r.cfg.RouterBuffer {
		violations = append(violations, fmt.Sprintf("router occupancy %d > buffer capacity %d", occ, r.cfg.RouterBuffer))
	}
	if v := r.rcv.CheckOutOfOrderInvariant(); v != "" {
		violations = append(violations, v)
	}
	return violations
}

// Run executes cfg.Iterations ticks of the control flow from spec.md §2,
// feeding the sender one large initial byte buffer per the out-of-scope
// application-layer note, and returns the final utilization percentage.
func (r *Runner) Run() int {
	fmt.Fprintf(r.out, "tcpsim: %s variant, %d iterations, loss_rate=%.4f (run %s)\n",
		r.sender.Variant(), r.cfg.Iterations, r.cfg.LossRate, r.runID)
	fmt.Fprintln(r.out, "Time\tCongWindow\tEffctWindow\tFlightSize\tSSThresh\tRTOinterval")

	potential := (r.cfg.RouterBuffer + r.cfg.MSS) * protocol.ByteCount(r.cfg.Iterations)
	feed := potential * 4
	r.senderEP.Send(feed)

	for i := 0; i < r.cfg.Iterations; i++ {
		r.tick()
		r.reportRow()
		if r.OnTick != nil {
			r.OnTick(r)
		}
	}

	actual := r.sender.LastByteAcked() + 1
	pct := 0
	if potential > 0 {
		pct = int(math.Round(100 * float64(actual) / float64(potential)))
	}
	fmt.Fprintln(r.out, "--- end of run ---")
	fmt.Fprintf(r.out, "Sender utilization: %d %%\n", pct)
	return pct
}

func (r *Runner) tick() {
	r.clock.Advance()

	r.link1.Process(link.ProcessBoth)
	r.senderEP.Process(endpoint.ProcessSender)
	r.link1.Process(link.ProcessForward)
	r.rtr.Process()

	r.link2.Process(link.ProcessBoth)
	r.rcvEP.Process(endpoint.ProcessReceiver)
	r.link2.Process(link.ProcessBackward)
	r.rtr.Process()
}

func (r *Runner) reportRow() {
	now := r.clock.CurrentTime()
	fmt.Fprintf(r.out, "%.1f\t%d\t%d\t%d\t%d\t%.4f\n",
		float64(now), int64(r.sender.CongWindow()), int64(r.sender.EffectiveWindow()),
		int64(r.sender.FlightSize()), int64(r.sender.SSThresh()), float64(r.sender.RTOInterval()))

	if r.reg != nil {
		r.reg.CongWindow.Set(float64(r.sender.CongWindow()))
		r.reg.SSThresh.Set(float64(r.sender.SSThresh()))
		r.reg.FlightSize.Set(float64(r.sender.FlightSize()))
		r.reg.RTOInterval.Set(float64(r.sender.RTOInterval()))
	}

	if r.mask.Has(utils.ReportRouters) {
		r.tracer.Trace("router occupancy", zap.Int64("occupancy", int64(r.rtr.Occupancy())), zap.Int("buffered", r.rtr.BufferedLen()))
	}
}
