package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Local is a per-process fixed window limiter. The middleware falls back to it
// while Redis is unreachable so the public endpoint stays bounded.
type Local struct {
	l *limiter.Limiter
}

// NewLocal returns a Local allowing max events per window for each key.
func NewLocal(window time.Duration, max int) *Local {
	return &Local{l: limiter.New(memory.NewStore(), limiter.Rate{Period: window, Limit: int64(max)})}
}

// Allow mirrors Limiter.Allow.
func (l *Local) Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error) {
	res, err := l.l.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now(), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
