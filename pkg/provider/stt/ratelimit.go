package stt

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps p so that at most perMinute transcriptions start per
// minute. Callers block in Transcribe until a token is available or ctx is
// done. A non-positive perMinute returns p unchanged.
func RateLimited(p Provider, perMinute int) Provider {
	if perMinute <= 0 {
		return p
	}
	return &rateLimited{
		next:    p,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

type rateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

func (r *rateLimited) Transcribe(ctx context.Context, rec Recording) (Transcript, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Transcript{}, fmt.Errorf("stt: rate limit wait: %w", err)
	}
	return r.next.Transcribe(ctx, rec)
}
