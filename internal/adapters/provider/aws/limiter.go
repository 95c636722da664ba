package aws

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/convergekit/converge/internal/errors"
)

const (
	defaultRateLimitRPS = 20
	minRateLimitRPS     = 1
	maxRateLimitRPS     = 100
)

// apiLimiter throttles all outbound AWS API calls of one provider instance so
// a wide manifest cannot trip account-level request limits.
type apiLimiter struct {
	limiter *rate.Limiter
}

func newAPILimiter(rps int) *apiLimiter {
	if rps < minRateLimitRPS || rps > maxRateLimitRPS {
		rps = defaultRateLimitRPS
	}
	return &apiLimiter{limiter: rate.NewLimiter(rate.Limit(rps), rps)}
}

func (l *apiLimiter) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, errors.CodeTimeout, "cancelled while waiting for API rate limiter")
	}
	return nil
}
