package fx

import (
    "context"
    "fmt"
    "math"
    "strings"
    "sync"
    "time"

    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"
)

// ReferenceCurrency is the currency all prices are converted into for
// cross-store ranking. Display always keeps the original currency.
const ReferenceCurrency = "RUB"

const defaultEndpoint = "https://api.exchangerate.host/latest"

// Hand-maintained fallback rates into RUB, used only when the live source
// is unavailable. Overridden by any successful live fetch.
var staticRatesToRUB = map[string]float64{
    "USD": 91.0,
    "EUR": 99.0,
    "GBP": 115.0,
    "TRY": 2.0,
    "BRL": 17.0,
    "ARS": 0.08,
    "INR": 1.07,
    "UAH": 2.4,
    "KZT": 0.2,
    "PLN": 23.0,
}

type Config struct {
    Endpoint string
    // Timeout bounds one live-rate request. Defaults to 8s.
    Timeout time.Duration
    // RateTTL bounds how long a fetched rate is reused. Defaults to 12h.
    RateTTL time.Duration
    Logger  zerolog.Logger
}

// Converter converts amounts between currencies using a live rate source
// with a pair-keyed TTL cache and a static to-RUB fallback table.
type Converter struct {
    cfg    Config
    client *resty.Client

    mu    sync.RWMutex
    rates map[pair]cachedRate
}

type pair struct{ from, to string }

type cachedRate struct {
    rate      float64
    expiresAt time.Time
}

func New(cfg Config, client *resty.Client) *Converter {
    if cfg.Endpoint == "" { cfg.Endpoint = defaultEndpoint }
    if cfg.Timeout <= 0 { cfg.Timeout = 8 * time.Second }
    if cfg.RateTTL <= 0 { cfg.RateTTL = 12 * time.Hour }
    return &Converter{cfg: cfg, client: client, rates: make(map[pair]cachedRate)}
}

// Convert returns amount expressed in the `to` currency, or nil when no
// rate is available by any path. A nil result means the caller must treat
// the price as unconvertible, not as zero.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) *float64 {
    from = strings.ToUpper(strings.TrimSpace(from))
    to = strings.ToUpper(strings.TrimSpace(to))
    if from == to {
        return &amount
    }

    if rate, ok := c.cached(from, to); ok {
        v := round2(amount * rate)
        return &v
    }

    rate, err := c.fetchRate(ctx, from, to)
    if err == nil {
        c.store(from, to, rate)
        v := round2(amount * rate)
        return &v
    }
    c.cfg.Logger.Warn().Err(err).Str("from", from).Str("to", to).Msg("fx: live rate unavailable")

    // Static fallback covers conversions into the reference currency only.
    if to == ReferenceCurrency {
        if rate, ok := staticRatesToRUB[from]; ok {
            v := round2(amount * rate)
            return &v
        }
    }
    return nil
}

func (c *Converter) cached(from, to string) (float64, bool) {
    c.mu.RLock()
    defer c.mu.RUnlock()
    e, ok := c.rates[pair{from, to}]
    if !ok || time.Now().After(e.expiresAt) { return 0, false }
    return e.rate, true
}

func (c *Converter) store(from, to string, rate float64) {
    c.mu.Lock()
    c.rates[pair{from, to}] = cachedRate{rate: rate, expiresAt: time.Now().Add(c.cfg.RateTTL)}
    c.mu.Unlock()
}

type ratesResponse struct {
    Rates map[string]float64 `json:"rates"`
}

func (c *Converter) fetchRate(ctx context.Context, from, to string) (float64, error) {
    reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
    defer cancel()

    var body ratesResponse
    resp, err := c.client.R().
        SetContext(reqCtx).
        SetQueryParams(map[string]string{"base": from, "symbols": to}).
        SetResult(&body).
        Get(c.cfg.Endpoint)
    if err != nil { return 0, fmt.Errorf("fx request: %w", err) }
    if resp.StatusCode() != 200 { return 0, fmt.Errorf("fx status %d", resp.StatusCode()) }
    rate, ok := body.Rates[to]
    if !ok || rate <= 0 { return 0, fmt.Errorf("fx payload missing rate %s->%s", from, to) }
    return rate, nil
}

func round2(v float64) float64 {
    return math.Round(v*100) / 100
}
