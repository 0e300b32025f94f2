package steam

import (
    "context"
    "fmt"
    "strings"

    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"

    "gameprices/internal/store"
)

const (
    defaultSearchURL  = "https://store.steampowered.com/api/storesearch"
    defaultDetailsURL = "https://store.steampowered.com/api/appdetails"
    defaultStoreURL   = "https://store.steampowered.com/app/"
    fallbackRegion    = "US"
)

type Config struct {
    Name       string
    SearchURL  string
    DetailsURL string
    // StoreURL is the user-facing app page prefix offers link to.
    StoreURL string
    Logger   zerolog.Logger
}

// Adapter talks to the Steam storefront JSON API. Prices arrive as integer
// minor units in the region's currency.
type Adapter struct {
    cfg    Config
    client *resty.Client
}

func New(cfg Config, client *resty.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "Steam" }
    if cfg.SearchURL == "" { cfg.SearchURL = defaultSearchURL }
    if cfg.DetailsURL == "" { cfg.DetailsURL = defaultDetailsURL }
    if cfg.StoreURL == "" { cfg.StoreURL = defaultStoreURL }
    return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }
func (a *Adapter) ID() store.ID { return store.Steam }

type searchResponse struct {
    Items []struct {
        ID   any    `json:"id"` // appid arrives as number
        Name string `json:"name"`
    } `json:"items"`
}

func (a *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    region = strings.ToUpper(region)
    var body searchResponse
    resp, err := a.client.R().
        SetContext(ctx).
        SetQueryParams(map[string]string{
            "term": query,
            "cc":   strings.ToLower(region),
            "l":    localeLanguage(region),
        }).
        SetResult(&body).
        Get(a.cfg.SearchURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("query", query).Msg("steam: search request failed")
        return nil, nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("steam: search status")
        return nil, nil
    }

    out := make([]store.Candidate, 0, len(body.Items))
    for _, item := range body.Items {
        appid := idString(item.ID)
        if appid == "" || item.Name == "" { continue }
        out = append(out, store.Candidate{Store: store.Steam, ExternalID: appid, Title: item.Name})
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

type priceOverview struct {
    Currency string `json:"currency"`
    Initial  *int64 `json:"initial"`
    Final    *int64 `json:"final"`
}

type appDetails struct {
    Success bool `json:"success"`
    Data    *struct {
        IsFree        bool           `json:"is_free"`
        PriceOverview *priceOverview `json:"price_overview"`
    } `json:"data"`
}

func (a *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    return a.offers(ctx, ref, strings.ToUpper(region), 0)
}

// depth bounds the one documented fallback to the US region when the
// primary region has no usable price record.
func (a *Adapter) offers(ctx context.Context, ref store.Ref, region string, depth int) ([]store.Offer, error) {
    if ref.ExternalID == "" { return nil, fmt.Errorf("steam: empty app id") }
    url := a.cfg.StoreURL + ref.ExternalID

    var body map[string]appDetails
    resp, err := a.client.R().
        SetContext(ctx).
        SetQueryParams(map[string]string{
            "appids":  ref.ExternalID,
            "cc":      region,
            "l":       localeLanguage(region),
            "filters": "price_overview",
        }).
        SetResult(&body).
        Get(a.cfg.DetailsURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("appid", ref.ExternalID).Str("region", region).Msg("steam: appdetails request failed")
        return nil, nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Warn().Int("status", resp.StatusCode()).Str("appid", ref.ExternalID).Msg("steam: appdetails status")
        return nil, nil
    }

    details, ok := body[ref.ExternalID]
    if !ok || !details.Success || details.Data == nil {
        return a.fallbackUS(ctx, ref, region, depth, "no details data")
    }

    label := a.label(region)
    if details.Data.IsFree {
        final, cur := store.Free()
        return []store.Offer{{
            Store: store.Steam, Region: region, Label: label,
            Final: final, Currency: cur, URL: url, Platforms: []string{"PC"},
        }}, nil
    }

    po := details.Data.PriceOverview
    if po == nil || po.Final == nil {
        return a.fallbackUS(ctx, ref, region, depth, "no price_overview")
    }

    offer := store.Offer{
        Store:     store.Steam,
        Region:    region,
        Label:     label,
        Final:     store.Ptr(float64(*po.Final) / 100),
        Currency:  po.Currency,
        URL:       url,
        Platforms: []string{"PC"},
    }
    if po.Initial != nil {
        offer.Base = store.Ptr(float64(*po.Initial) / 100)
    }
    return []store.Offer{offer}, nil
}

func (a *Adapter) fallbackUS(ctx context.Context, ref store.Ref, region string, depth int, reason string) ([]store.Offer, error) {
    if region == fallbackRegion || depth > 0 {
        return nil, nil
    }
    a.cfg.Logger.Warn().Str("appid", ref.ExternalID).Str("region", region).Str("reason", reason).Msg("steam: falling back to US")
    return a.offers(ctx, ref, fallbackRegion, depth+1)
}

func (a *Adapter) label(region string) string {
    if region == "RU" { return a.cfg.Name }
    return a.cfg.Name + " " + region
}

func localeLanguage(region string) string {
    if region == "RU" { return "russian" }
    return "english"
}

func idString(v any) string {
    switch x := v.(type) {
    case string:
        return x
    case float64:
        return fmt.Sprintf("%.0f", x)
    default:
        return ""
    }
}
