package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultRetryDelay is the pause between attempts, matching the one request
// per second public geocoders allow.
const DefaultRetryDelay = time.Second

// RetryPolicy bounds Retrying. MaxAttempts <= 0 retries without limit; only
// cancelling the context stops it then.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Delay <= 0 {
		p.Delay = DefaultRetryDelay
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}

// Retrying resolves through next, retrying on ErrTimeout with a constant
// pause between attempts. Any other error is returned at once.
type Retrying struct {
	next   Resolver
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetrying wraps next. A nil logger disables logging.
func NewRetrying(next Resolver, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, policy: policy.withDefaults(), logger: logger}
}

// Policy returns the effective policy.
func (r *Retrying) Policy() RetryPolicy { return r.policy }

func (r *Retrying) Resolve(ctx context.Context, address string) (Point, error) {
	var b backoff.BackOff = backoff.NewConstantBackOff(r.policy.Delay)
	if r.policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	attempts := 0
	p, err := backoff.RetryNotifyWithData(func() (Point, error) {
		attempts++
		p, err := r.next.Resolve(ctx, address)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrTimeout) {
			return Point{}, err
		}
		return Point{}, backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		r.logger.Warn("geocoder timed out, retrying",
			zap.String("address", address),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return Point{}, fmt.Errorf("geo: resolve %q gave up after %d attempts: %w", address, attempts, err)
		}
		return Point{}, err
	}
	return p, nil
}
