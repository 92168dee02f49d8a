package speedyu

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"time"
)

// errPermanent marks lookups a retry cannot fix, such as a rejected key.
var errPermanent = errors.New("permanent failure")

const maxBackoff = 5 * time.Second

// backoff spaces out lookup retries: base, 2x base, 4x base... capped at
// maxBackoff, each with up to half of it replaced by random jitter.
type backoff struct {
	attempts int
	base     time.Duration
}

func newBackoff(attempts int, base time.Duration) backoff {
	if attempts <= 0 {
		attempts = 3
	}
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	return backoff{attempts: attempts, base: base}
}

// retryable reports whether another attempt may follow failure number attempt.
// Once the caller's ctx is done nothing is retried; a timeout from the HTTP
// client itself is transient.
func (b backoff) retryable(ctx context.Context, err error, attempt int) bool {
	switch {
	case err == nil, attempt >= b.attempts, ctx.Err() != nil:
		return false
	case errors.Is(err, errPermanent):
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return !errors.Is(err, context.Canceled)
}

// wait sleeps before the next attempt, returning early if ctx ends.
func (b backoff) wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b backoff) delay(attempt int) time.Duration {
	d := b.base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(half)))
	if err != nil {
		return d
	}
	return half + time.Duration(n.Int64())
}
