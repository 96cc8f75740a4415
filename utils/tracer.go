package utils

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Tracer wraps a component logger with a token-bucket rate limiter so that
// optional, high-frequency verbose lines (router drop, loss and occupancy
// traces) can't flood the terminal on a long run with a
// broad --report-level. It never gates the mandatory per-tick metrics row
// or any computation feeding the final utilization figure — only these
// supplementary Debug lines pass through it.
type Tracer struct {
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewTracer builds a Tracer emitting at most burst lines immediately and
// thereafter ratePerSecond lines per second, dropping the rest silently.
func NewTracer(logger *zap.Logger, ratePerSecond float64, burst int) *Tracer {
	return &Tracer{logger: logger, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Trace emits msg with fields if the rate limiter currently has a token
// available; otherwise it is dropped.
func (t *Tracer) Trace(msg string, fields ...zap.Field) {
	if t == nil || t.logger == nil {
		return
	}
	if t.limiter.Allow() {
		t.logger.Debug(msg, fields...)
	}
}
