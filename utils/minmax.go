// Package utils carries the simulator's ambient helpers: numeric min/max
// (kept from the teacher's own utils package), structured logging (zap,
// replacing the teacher's hand-rolled level-gated fmt.Fprintf logger), a
// rate-limited verbose tracer, and generic sort helpers.
package utils

import "github.com/tcpsim/tcpsim/protocol"

// MaxByteCount returns the maximum of two ByteCounts.
func MaxByteCount(a, b protocol.ByteCount) protocol.ByteCount {
	if a > b {
		return a
	}
	return b
}

// MinByteCount returns the minimum of two ByteCounts.
func MinByteCount(a, b protocol.ByteCount) protocol.ByteCount {
	if a < b {
		return a
	}
	return b
}

// MaxTick returns the maximum of two Ticks.
func MaxTick(a, b protocol.Tick) protocol.Tick {
	if a > b {
		return a
	}
	return b
}

// MinTick returns the minimum of two Ticks.
func MinTick(a, b protocol.Tick) protocol.Tick {
	if a < b {
		return a
	}
	return b
}

// ClampTick clamps v to [lo, hi].
func ClampTick(v, lo, hi protocol.Tick) protocol.Tick {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AbsTick returns the absolute value of a Tick.
func AbsTick(v protocol.Tick) protocol.Tick {
	if v < 0 {
		return -v
	}
	return v
}

// AbsInt64 returns the absolute value of an int64.
func AbsInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
