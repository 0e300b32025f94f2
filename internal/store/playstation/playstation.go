package playstation

import (
    "context"
    "encoding/json"
    "fmt"
    "net/url"
    "sort"
    "strings"

    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"

    "gameprices/internal/scrape"
    "gameprices/internal/store"
)

const (
    defaultBaseURL    = "https://store.playstation.com"
    defaultGraphQLURL = "https://web.np.playstation.com/api/graphql/v1/op"
    fallbackRegion    = "US"
)

var regionLocale = map[string]string{
    "RU": "ru-ru",
    "US": "en-us",
    "TR": "tr-tr",
    "BR": "pt-br",
    "AR": "es-ar",
    "IN": "en-in",
    "UA": "ru-ua", // keeps hryvnia pricing
    "KZ": "ru-ru", // KZ storefront serves russian locale prices
    "PL": "pl-pl",
    "DE": "de-de",
}

func localeFor(region string) string {
    if l, ok := regionLocale[strings.ToUpper(region)]; ok { return l }
    return "en-us"
}

type Config struct {
    Name       string
    BaseURL    string
    GraphQLURL string
    // SessionCookie enables the persisted-query GraphQL strategy. Without
    // it only the public HTML strategies are attempted.
    SessionCookie string
    // DepositThresholds maps currency to the value below which a price in a
    // deposit region is a pre-order deposit, not a full price. Empirically
    // tuned; keep configurable.
    DepositThresholds map[string]float64
    // DepositRegions lists regions where deposit prices are observed.
    DepositRegions []string
    // NoiseRatio: a scraped price whose next larger neighbor exceeds it by
    // this factor is discarded as unrelated micro-transaction noise.
    NoiseRatio float64
    Logger     zerolog.Logger
}

// Adapter resolves PlayStation Store prices through three strategies of
// decreasing reliability: persisted-query GraphQL (session required),
// product-page embedded JSON, and free-text price extraction.
type Adapter struct {
    cfg    Config
    client *resty.Client
}

func New(cfg Config, client *resty.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "PlayStation Store" }
    if cfg.BaseURL == "" { cfg.BaseURL = defaultBaseURL }
    if cfg.GraphQLURL == "" { cfg.GraphQLURL = defaultGraphQLURL }
    if cfg.NoiseRatio <= 0 { cfg.NoiseRatio = 1.8 }
    if len(cfg.DepositRegions) == 0 { cfg.DepositRegions = []string{"AR", "KZ"} }
    if cfg.DepositThresholds == nil {
        cfg.DepositThresholds = map[string]float64{
            "ARS": 20000,
            "KZT": 5000,
            "USD": 10,
        }
    }
    return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }
func (a *Adapter) ID() store.ID { return store.PlayStation }

func (a *Adapter) productURL(region, pid string) string {
    return fmt.Sprintf("%s/%s/product/%s", a.cfg.BaseURL, localeFor(region), pid)
}

// --- search ---

type nextData struct {
    Props struct {
        PageProps struct {
            DehydratedState struct {
                Queries []struct {
                    State struct {
                        Data struct {
                            SearchRetrieve struct {
                                Concepts []concept `json:"concepts"`
                            } `json:"searchRetrieve"`
                        } `json:"data"`
                    } `json:"state"`
                } `json:"queries"`
            } `json:"dehydratedState"`
        } `json:"pageProps"`
        ApolloState map[string]json.RawMessage `json:"apolloState"`
    } `json:"props"`
}

type concept struct {
    ID             string `json:"id"`
    Name           string `json:"name"`
    InvariantName  string `json:"invariantName"`
    DefaultProduct *struct {
        ID   string `json:"id"`
        Name string `json:"name"`
    } `json:"defaultProduct"`
}

type apolloProduct struct {
    ID        string   `json:"id"`
    Name      string   `json:"name"`
    Platforms []string `json:"platforms"`
    Price     *struct {
        IsFree                bool     `json:"isFree"`
        BasePrice             string   `json:"basePrice"`
        DiscountedPrice       string   `json:"discountedPrice"`
        ServiceBranding       []string `json:"serviceBranding"`
        UpsellServiceBranding []string `json:"upsellServiceBranding"`
    } `json:"price"`
}

func (a *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    if strings.TrimSpace(query) == "" { return nil, nil }
    region = strings.ToUpper(region)
    locale := localeFor(region)
    searchURL := fmt.Sprintf("%s/%s/search/%s", a.cfg.BaseURL, locale, url.PathEscape(query))

    resp, err := a.client.R().
        SetContext(ctx).
        SetHeader("Accept", "text/html,application/xhtml+xml").
        SetHeader("Accept-Language", locale).
        Get(searchURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("query", query).Msg("playstation: search request failed")
        return nil, nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("playstation: search status")
        return nil, nil
    }

    raw := scrape.NextData(resp.String())
    if raw == nil {
        a.cfg.Logger.Warn().Str("query", query).Msg("playstation: __NEXT_DATA__ missing on search page")
        return nil, nil
    }
    var data nextData
    if err := json.Unmarshal(raw, &data); err != nil {
        a.cfg.Logger.Warn().Err(err).Msg("playstation: search payload decode")
        return nil, nil
    }

    out := a.candidatesFromConcepts(data)
    if len(out) == 0 {
        out = a.candidatesFromApollo(data)
    }
    if limit > 0 && len(out) > limit { out = out[:limit] }
    return out, nil
}

func (a *Adapter) candidatesFromConcepts(data nextData) []store.Candidate {
    var out []store.Candidate
    for _, q := range data.Props.PageProps.DehydratedState.Queries {
        for _, c := range q.State.Data.SearchRetrieve.Concepts {
            if c.Name == "" || c.DefaultProduct == nil || c.DefaultProduct.ID == "" { continue }
            out = append(out, store.Candidate{
                Store:         store.PlayStation,
                ExternalID:    c.DefaultProduct.ID,
                Title:         c.Name,
                ConceptID:     c.ID,
                InvariantName: c.InvariantName,
            })
        }
    }
    return out
}

// Older page revisions ship products in apolloState instead of the
// dehydrated react-query state.
func (a *Adapter) candidatesFromApollo(data nextData) []store.Candidate {
    // apolloState is a map; iterate its keys sorted so candidate order and
    // limit truncation stay stable between calls.
    keys := make([]string, 0, len(data.Props.ApolloState))
    for key := range data.Props.ApolloState {
        if strings.HasPrefix(key, "Product:") { keys = append(keys, key) }
    }
    sort.Strings(keys)

    var out []store.Candidate
    for _, key := range keys {
        var p apolloProduct
        if err := json.Unmarshal(data.Props.ApolloState[key], &p); err != nil { continue }
        if p.ID == "" {
            p.ID = strings.TrimPrefix(key, "Product:")
        }
        if p.Name == "" || p.ID == "" { continue }
        out = append(out, store.Candidate{Store: store.PlayStation, ExternalID: p.ID, Title: p.Name})
    }
    return out
}

// --- offers ---

func (a *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    return a.offers(ctx, ref, strings.ToUpper(region), 0)
}

func (a *Adapter) offers(ctx context.Context, ref store.Ref, region string, depth int) ([]store.Offer, error) {
    if ref.ExternalID == "" { return nil, fmt.Errorf("playstation: empty product id") }

    // Strategies in order of decreasing reliability.
    if a.cfg.SessionCookie != "" {
        if offers := a.offersFromGraphQL(ctx, ref.ExternalID, region); len(offers) > 0 {
            return offers, nil
        }
    }
    if offers := a.offersFromProductPage(ctx, ref.ExternalID, region); len(offers) > 0 {
        return offers, nil
    }
    if offers := a.offersFromGamesPage(ctx, ref, region); len(offers) > 0 {
        return offers, nil
    }

    if region != fallbackRegion && depth == 0 {
        a.cfg.Logger.Warn().Str("pid", ref.ExternalID).Str("region", region).Msg("playstation: no usable price, falling back to US")
        return a.offers(ctx, ref, fallbackRegion, depth+1)
    }
    return nil, nil
}

func (a *Adapter) label(region string) string {
    if region == "RU" { return a.cfg.Name }
    return a.cfg.Name + " " + region
}

func (a *Adapter) isDepositRegion(region string) bool {
    for _, r := range a.cfg.DepositRegions {
        if strings.EqualFold(r, region) { return true }
    }
    return false
}

// depositThreshold returns the full-price floor for a currency in deposit
// regions, 0 elsewhere.
func (a *Adapter) depositThreshold(currency, region string) float64 {
    if !a.isDepositRegion(region) { return 0 }
    return a.cfg.DepositThresholds[strings.ToUpper(currency)]
}
