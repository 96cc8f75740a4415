package simulator

import "github.com/tcpsim/tcpsim/protocol"

// Config collects every knob the CLI exposes, per SPEC_FULL.md §6.
type Config struct {
	Variant  string
	Iterations int
	LossRate float64

	ReportLevel   string
	RouterBuffer  protocol.ByteCount
	RecvWindow    protocol.ByteCount
	MSS           protocol.ByteCount
	MetricsAddr   string
	Seed          int64

	Propagation1, Transmission1 protocol.Tick
	Propagation2, Transmission2 protocol.Tick
}

// DefaultConfig returns a Config with the reference tuning from spec.md
// §8's concrete scenarios: MSS=128, buffer=6*MSS+100, rcv_window=65536,
// link1 tx=0.001, link2 tx=0.01, prop=0.001 both directions.
func DefaultConfig() Config {
	mss := protocol.DefaultMSS
	return Config{
		ReportLevel:  "simulator,senders",
		RouterBuffer: 6*mss + 100,
		RecvWindow:   protocol.DefaultRecvWindow,
		MSS:          mss,

		Propagation1:  0.001,
		Transmission1: 0.001,
		Propagation2:  0.001,
		Transmission2: 0.01,
	}
}
