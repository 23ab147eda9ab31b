package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts       = 5
	DefaultInitialDelay      = time.Second
	DefaultBackoffMultiplier = 2.0
)

// Class is the retry classification of an error.
type Class int

const (
	// Fatal errors are returned immediately.
	Fatal Class = iota
	// Transient errors are retried while attempts remain.
	Transient
	// Cancelled means the caller gave up; it is never retried.
	Cancelled
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Cancelled:
		return "cancelled"
	default:
		return "fatal"
	}
}

// Policy retries an operation with exponential backoff.
//
// The delay before attempt n (n >= 2) is InitialDelay * BackoffMultiplier^(n-2).
type Policy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64

	// OnRetry, when set, is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns 5 attempts starting at one second, doubling each time.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       DefaultMaxAttempts,
		InitialDelay:      DefaultInitialDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = DefaultBackoffMultiplier
	}
	return p
}

// Delay returns the wait before the given 1-based attempt. The first attempt never waits.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 2 {
		return 0
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-2)))
}

// Execute runs operation until it succeeds, fails with a non transient error, or
// MaxAttempts is reached. The last error of the operation is returned as is.
// If ctx is done while waiting, ctx.Err() is returned instead of retrying.
func (p Policy) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	p = p.normalized()

	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = p.InitialDelay
	exponential.Multiplier = p.BackoffMultiplier
	exponential.RandomizationFactor = 0
	exponential.MaxInterval = time.Duration(math.MaxInt64)
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	schedule := backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(p.MaxAttempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := operation(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if Classify(err) != Transient {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
	}

	return backoff.RetryNotify(op, schedule, notify)
}

type statusCoder interface {
	StatusCode() int
}

// Classify decides whether err is worth retrying. Unknown errors are fatal.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var coder statusCoder
	if errors.As(err, &coder) {
		return classifyStatus(coder.StatusCode())
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return Transient
		}
		return Classify(urlErr.Err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return Transient
	}

	return Fatal
}

func classifyStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return Transient
	case code >= 500 && code <= 599:
		return Transient
	default:
		return Fatal
	}
}
