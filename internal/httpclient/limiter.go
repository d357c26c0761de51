package httpclient

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound requests. A nil Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing rps requests per second; rps <= 0 means unlimited
func NewPacer(rps float64) *Pacer {
	if rps <= 0 {
		return nil
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next request may be sent or ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
