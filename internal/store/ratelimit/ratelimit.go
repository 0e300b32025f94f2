package ratelimit

import (
    "context"

    "golang.org/x/time/rate"

    "gameprices/internal/store"
)

// Adapter gates calls to the wrapped adapter with a token bucket. Waits
// honor the context, so a canceled fan-out never blocks on the limiter.
type Adapter struct {
    A store.Adapter
    L *rate.Limiter
}

// New wraps a with a limiter allowing rpm requests per minute and the given
// burst. A non-positive rpm disables limiting.
func New(a store.Adapter, rpm int, burst int) store.Adapter {
    if rpm <= 0 { return a }
    if burst <= 0 { burst = 1 }
    return &Adapter{A: a, L: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)}
}

func (r *Adapter) Name() string { return r.A.Name() }
func (r *Adapter) ID() store.ID { return r.A.ID() }

func (r *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    if err := r.L.Wait(ctx); err != nil { return nil, err }
    return r.A.Search(ctx, query, region, limit)
}

func (r *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    if err := r.L.Wait(ctx); err != nil { return nil, err }
    return r.A.Offers(ctx, ref, region)
}
