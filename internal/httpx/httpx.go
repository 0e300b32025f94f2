package httpx

import (
    "net"
    "net/http"
    "time"

    "github.com/go-resty/resty/v2"
)

// Browser-like default; several storefronts answer differently (or not at
// all) to obvious bot agents.
const defaultUserAgent = "Mozilla/5.0 (compatible; GamePrices/1.0)"

// New builds a resty client with sane transport defaults shared by all
// store adapters. Retries cover transient upstream failures only; the
// adapters treat a final failure as "no offer", never as a pipeline error.
func New(timeout time.Duration) *resty.Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          200,
        MaxIdleConnsPerHost:   100,
        MaxConnsPerHost:       100,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   3 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
        ResponseHeaderTimeout: 5 * time.Second,
    }
    c := resty.New().
        SetTransport(transport).
        SetTimeout(timeout).
        SetRetryCount(2).
        SetRetryWaitTime(500 * time.Millisecond).
        SetRetryMaxWaitTime(3 * time.Second).
        SetHeader("User-Agent", defaultUserAgent).
        SetHeader("Accept-Language", "ru,en;q=0.8")
    // Anti-bot responses (403) are handled by the adapters themselves;
    // retrying them here only burns time.
    c.AddRetryCondition(func(r *resty.Response, err error) bool {
        if err != nil { return true }
        return r.StatusCode() >= 500
    })
    return c
}
