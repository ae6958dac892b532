package logger

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit throttles a log call site. Device error handlers run once per
// failed transfer, so a dying disk would otherwise flood the error log.
// Suppressed calls are counted and reported with the next message that
// gets through.
type RateLimit struct {
	limiter    *rate.Limiter
	suppressed int64
}

// NewRateLimit allows burst messages per interval.
func NewRateLimit(interval time.Duration, burst int) *RateLimit {
	return &RateLimit{
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Allow reports whether the call site may log now.
func (r *RateLimit) Allow() bool {
	if r.limiter.Allow() {
		return true
	}
	atomic.AddInt64(&r.suppressed, 1)
	return false
}

// Errorf 记录限流错误日志
func (r *RateLimit) Errorf(format string, args ...interface{}) {
	if !r.Allow() {
		return
	}
	if n := atomic.SwapInt64(&r.suppressed, 0); n > 0 {
		Errorf("%d similar messages suppressed", n)
	}
	Errorf(format, args...)
}

// Warnf 记录限流警告日志
func (r *RateLimit) Warnf(format string, args ...interface{}) {
	if !r.Allow() {
		return
	}
	if n := atomic.SwapInt64(&r.suppressed, 0); n > 0 {
		Warnf("%d similar messages suppressed", n)
	}
	Warnf(format, args...)
}
