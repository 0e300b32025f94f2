package steam

import (
	"context"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/go-resty/resty/v2"
    "github.com/stretchr/testify/require"

    "gameprices/internal/store"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
    t.Helper()
    srv := httptest.NewServer(handler)
    t.Cleanup(srv.Close)
    return New(Config{SearchURL: srv.URL + "/search", DetailsURL: srv.URL + "/details"}, resty.New())
}

func TestSearch(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        require.Equal(t, "/search", r.URL.Path)
        require.Equal(t, "hades", r.URL.Query().Get("term"))
        require.Equal(t, "ru", r.URL.Query().Get("cc"))
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"items":[{"id":1145360,"name":"Hades"},{"id":1145361,"name":""},{"id":2135150,"name":"Hades II"}]}`))
    })
    got, err := a.Search(context.Background(), "hades", "RU", 10)
    require.NoError(t, err)
    require.Equal(t, []store.Candidate{
        {Store: store.Steam, ExternalID: "1145360", Title: "Hades"},
        {Store: store.Steam, ExternalID: "2135150", Title: "Hades II"},
    }, got)
}

func TestOffers_MinorUnitsAndDiscount(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"1091500":{"success":true,"data":{"is_free":false,"price_overview":{"currency":"RUB","initial":299900,"final":149950}}}}`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "1091500"}, "RU")
    require.NoError(t, err)
    require.Len(t, got, 1)
    o := got[0]
    require.Equal(t, "RUB", o.Currency)
    require.Equal(t, 1499.50, *o.Final)
    require.Equal(t, 2999.00, *o.Base)
    require.Equal(t, "Steam", o.Label)
    require.True(t, *o.Final <= *o.Base)
}

func TestOffers_FreeGame(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"570":{"success":true,"data":{"is_free":true}}}`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "570"}, "US")
    require.NoError(t, err)
    require.Len(t, got, 1)
    require.Equal(t, store.FreeCurrency, got[0].Currency)
    require.Equal(t, 0.0, *got[0].Final)
    require.Equal(t, "Steam US", got[0].Label)
}

func TestOffers_FallbackToUSOnce(t *testing.T) {
    var regions []string
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        regions = append(regions, r.URL.Query().Get("cc"))
        // No price_overview anywhere.
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"123":{"success":true,"data":{"is_free":false}}}`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "123"}, "RU")
    require.NoError(t, err)
    require.Empty(t, got)
    require.Equal(t, []string{"RU", "US"}, regions)
}

func TestOffers_UpstreamFailureIsEmptyNotError(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "nope", http.StatusServiceUnavailable)
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "123"}, "US")
    require.NoError(t, err)
    require.Empty(t, got)
}
