package epic

import (
	"context"
    "encoding/json"
    "io"
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
    return New(Config{GraphQLURL: srv.URL + "/graphql", StoreURL: srv.URL}, resty.New())
}

func graphqlVariables(t *testing.T, r *http.Request) map[string]any {
    t.Helper()
    raw, err := io.ReadAll(r.Body)
    require.NoError(t, err)
    var payload struct {
        Query     string         `json:"query"`
        Variables map[string]any `json:"variables"`
    }
    require.NoError(t, json.Unmarshal(raw, &payload))
    require.Contains(t, payload.Query, "searchStore")
    return payload.Variables
}

func TestSearch(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        require.Equal(t, "/graphql", r.URL.Path)
        vars := graphqlVariables(t, r)
        require.Equal(t, "witcher", vars["keywords"])
        require.Equal(t, "RU", vars["country"])
        require.Equal(t, "ru-RU", vars["locale"])
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[
            {"title":"The Witcher 3: Wild Hunt","namespace":"14ee004dadc142faaaece5a6270fb628","productSlug":"the-witcher-3-wild-hunt/home"},
            {"title":"Mystery Game","namespace":"x","productSlug":"mystery"},
            {"title":"Fortnite","namespace":"","urlSlug":"fortnite"},
            {"title":"No Slug Entry","namespace":"y"}
        ]}}}}`))
    })
    got, err := a.Search(context.Background(), "witcher", "RU", 10)
    require.NoError(t, err)
    require.Equal(t, []store.Candidate{
        {Store: store.Epic, ExternalID: "14ee004dadc142faaaece5a6270fb628/the-witcher-3-wild-hunt", Title: "The Witcher 3: Wild Hunt"},
        {Store: store.Epic, ExternalID: "_nons/fortnite", Title: "Fortnite"},
    }, got)
}

func TestOffers_MinorUnitsAndDiscount(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        vars := graphqlVariables(t, r)
        require.Equal(t, "the-witcher-3-wild-hunt", vars["keywords"])
        require.Equal(t, float64(1), vars["count"])
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[
            {"title":"The Witcher 3: Wild Hunt","namespace":"ns","productSlug":"the-witcher-3-wild-hunt",
             "price":{"totalPrice":{"discountPrice":2999,"originalPrice":5999,"currencyCode":"USD"}}}
        ]}}}}`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "ns/the-witcher-3-wild-hunt"}, "US")
    require.NoError(t, err)
    require.Len(t, got, 1)
    o := got[0]
    require.Equal(t, 29.99, *o.Final)
    require.Equal(t, 59.99, *o.Base)
    require.Equal(t, "USD", o.Currency)
    require.Equal(t, "Epic Games US", o.Label)
    require.True(t, *o.Final <= *o.Base)
}

func TestOffers_Free(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[
            {"title":"Fortnite","productSlug":"fortnite","price":{"totalPrice":{"discountPrice":0,"originalPrice":0,"currencyCode":"USD"}}}
        ]}}}}`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "_nons/fortnite"}, "RU")
    require.NoError(t, err)
    require.Len(t, got, 1)
    require.Equal(t, store.FreeCurrency, got[0].Currency)
    require.Equal(t, 0.0, *got[0].Final)
    require.Equal(t, "Epic Games", got[0].Label)
}

func TestOffers_RUCurrencyMismatchRecoversRuble(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        switch r.URL.Path {
        case "/graphql":
            w.Header().Set("Content-Type", "application/json")
            w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[
                {"title":"Alan Wake 2","namespace":"ns","productSlug":"alan-wake-2",
                 "price":{"totalPrice":{"discountPrice":4999,"originalPrice":4999,"currencyCode":"USD"}}}
            ]}}}}`))
        case "/ru/p/alan-wake-2":
            w.Write([]byte(`<html><body><span>Купить за 2 999 ₽</span></body></html>`))
        default:
            t.Errorf("unexpected path %s", r.URL.Path)
        }
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "ns/alan-wake-2"}, "RU")
    require.NoError(t, err)
    require.Len(t, got, 1)
    require.Equal(t, 2999.0, *got[0].Final)
    require.Equal(t, "RUB", got[0].Currency)
    require.Nil(t, got[0].Base)
}

func TestOffers_RUFallbackRetriesGenericPathOn403(t *testing.T) {
    var paths []string
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path == "/graphql" {
            w.Header().Set("Content-Type", "application/json")
            w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[
                {"title":"Control","namespace":"ns","productSlug":"control",
                 "price":{"totalPrice":{"discountPrice":1999,"currencyCode":"USD"}}}
            ]}}}}`))
            return
        }
        paths = append(paths, r.URL.Path)
        if r.URL.Path == "/ru/p/control" {
            http.Error(w, "blocked", http.StatusForbidden)
            return
        }
        w.Write([]byte(`<html><body>1 499,50 ₽</body></html>`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "ns/control"}, "RU")
    require.NoError(t, err)
    require.Len(t, got, 1)
    require.Equal(t, []string{"/ru/p/control", "/p/control"}, paths)
    require.Equal(t, 1499.50, *got[0].Final)
    require.Equal(t, "RUB", got[0].Currency)
    require.Contains(t, got[0].URL, "/p/control")
    require.NotContains(t, got[0].URL, "/ru/p/")
}

func TestOffers_RUFallbackFailureKeepsGraphQLPrice(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path == "/graphql" {
            w.Header().Set("Content-Type", "application/json")
            w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[
                {"title":"Control","namespace":"ns","productSlug":"control",
                 "price":{"totalPrice":{"discountPrice":1999,"currencyCode":"USD"}}}
            ]}}}}`))
            return
        }
        w.Write([]byte(`<html><body>no price rendered</body></html>`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "ns/control"}, "RU")
    require.NoError(t, err)
    require.Len(t, got, 1)
    require.Equal(t, 19.99, *got[0].Final)
    require.Equal(t, "USD", got[0].Currency)
}

func TestOffers_NoResults(t *testing.T) {
    a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        w.Write([]byte(`{"data":{"Catalog":{"searchStore":{"elements":[]}}}}`))
    })
    got, err := a.Offers(context.Background(), store.Ref{ExternalID: "ns/nothing"}, "US")
    require.NoError(t, err)
    require.Empty(t, got)
}
