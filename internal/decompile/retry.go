package decompile

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// RetryConfig bounds how often a request to the decompilation service is
// repeated after the service was unreachable or answered 5xx/429.
type RetryConfig struct {
	// MaxRetries is the number of repeats after the first attempt.
	MaxRetries int
	// InitialBackoff is the pause before the first repeat.
	InitialBackoff time.Duration
	// MaxBackoff caps the pause between repeats.
	MaxBackoff time.Duration
	// Multiplier grows the pause after every repeat.
	Multiplier float64
}

// DefaultRetryConfig returns the policy NewClient installs: up to three
// repeats, starting at half a second.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}
}

func (c *RetryConfig) next(pause time.Duration) time.Duration {
	pause = time.Duration(float64(pause) * c.Multiplier)
	return min(pause, c.MaxBackoff)
}

// transientNetError reports whether a failed round trip to the service is
// worth repeating: timeouts, temporary DNS failures and dial/read errors.
// A canceled or expired context and an unknown host are final.
func transientNetError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// transientStatus reports whether the service asked us to come back later.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// requestError is a failed attempt at one service call. status is the HTTP
// status when the service answered at all.
type requestError struct {
	err       error
	status    int
	transient bool
}

func (e *requestError) Error() string {
	if e.status > 0 {
		return fmt.Sprintf("service answered %d: %v", e.status, e.err)
	}
	return fmt.Sprintf("service unreachable: %v", e.err)
}

func (e *requestError) Unwrap() error { return e.err }

// withRetry calls attempt until it succeeds or fails with anything other than
// a transient *requestError. A nil policy means a single attempt.
func withRetry(ctx context.Context, policy *RetryConfig, attempt func() error) error {
	if policy == nil || policy.MaxRetries <= 0 {
		return attempt()
	}

	pause := policy.InitialBackoff
	var err error
	for n := 0; ; n++ {
		if err = attempt(); err == nil {
			return nil
		}
		var reqErr *requestError
		if !errors.As(err, &reqErr) || !reqErr.transient {
			return err
		}
		if n == policy.MaxRetries {
			return fmt.Errorf("gave up after %d attempts: %w", n+1, err)
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("canceled while retrying: %w", ctx.Err())
		case <-timer.C:
		}
		pause = policy.next(pause)
	}
}
