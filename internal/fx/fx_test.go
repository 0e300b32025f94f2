package fx

import (
	"context"
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"

    "github.com/go-resty/resty/v2"
    "github.com/stretchr/testify/require"
)

func newTestConverter(t *testing.T, handler http.HandlerFunc) (*Converter, *int32) {
    t.Helper()
    var calls int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        atomic.AddInt32(&calls, 1)
        handler(w, r)
    }))
    t.Cleanup(srv.Close)
    c := New(Config{Endpoint: srv.URL, Timeout: 2 * time.Second}, resty.New())
    return c, &calls
}

func TestConvert_Identity_NoNetworkCall(t *testing.T) {
    c, calls := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"rates":{"RUB":100}}`))
    })
    got := c.Convert(context.Background(), 49.99, "USD", "USD")
    require.NotNil(t, got)
    require.Equal(t, 49.99, *got)
    require.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestConvert_LiveRate_CachedForSecondCall(t *testing.T) {
    c, calls := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
        require.Equal(t, "USD", r.URL.Query().Get("base"))
        require.Equal(t, "RUB", r.URL.Query().Get("symbols"))
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"rates":{"RUB":90.5}}`))
    })
    got := c.Convert(context.Background(), 10, "USD", "RUB")
    require.NotNil(t, got)
    require.Equal(t, 905.0, *got)

    got = c.Convert(context.Background(), 20, "USD", "RUB")
    require.NotNil(t, got)
    require.Equal(t, 1810.0, *got)
    require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestConvert_StaticFallback_ReferenceOnly(t *testing.T) {
    c, _ := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "down", http.StatusBadGateway)
    })

    got := c.Convert(context.Background(), 100, "TRY", "RUB")
    require.NotNil(t, got)
    require.Equal(t, 200.0, *got) // 100 * static 2.0

    // Fallback never serves non-reference targets.
    require.Nil(t, c.Convert(context.Background(), 100, "TRY", "USD"))
    // Unknown currency has no static rate either.
    require.Nil(t, c.Convert(context.Background(), 100, "XYZ", "RUB"))
}

func TestConvert_MalformedPayload(t *testing.T) {
    c, _ := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"rates":{}}`))
    })
    got := c.Convert(context.Background(), 5, "USD", "RUB")
    // Empty payload -> static fallback for RUB.
    require.NotNil(t, got)
    require.Equal(t, 455.0, *got)
}

func TestConvert_Rounding(t *testing.T) {
    c, _ := newTestConverter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"rates":{"RUB":91.337}}`))
    })
    got := c.Convert(context.Background(), 9.99, "USD", "RUB")
    require.NotNil(t, got)
    require.Equal(t, 912.46, *got) // round(9.99*91.337, 2)
}
