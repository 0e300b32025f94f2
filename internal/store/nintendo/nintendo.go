package nintendo

import (
    "context"
    "fmt"
    "strconv"
    "strings"

    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"

    "gameprices/internal/store"
)

// Nintendo has no uniform per-region catalog API. The European Solr index
// is the only one with usable free-text search, so it serves search for
// every region; the price endpoint is regional and takes the nsuid found
// there.
const (
    defaultSearchURL         = "https://search.nintendo-europe.com/en/select"
    defaultFallbackSearchURL = "https://search.nintendo-europe.com/de/select"
    defaultPriceURL          = "https://api.ec.nintendo.com/v1/price"

    fallbackRegion = "DE"
)

type Config struct {
    Name              string
    SearchURL         string
    FallbackSearchURL string
    PriceURL          string
    Logger            zerolog.Logger
}

type Adapter struct {
    cfg    Config
    client *resty.Client
}

func New(cfg Config, client *resty.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "Nintendo eShop" }
    if cfg.SearchURL == "" { cfg.SearchURL = defaultSearchURL }
    if cfg.FallbackSearchURL == "" { cfg.FallbackSearchURL = defaultFallbackSearchURL }
    if cfg.PriceURL == "" { cfg.PriceURL = defaultPriceURL }
    return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }
func (a *Adapter) ID() store.ID { return store.Nintendo }

type solrResponse struct {
    Response struct {
        Docs []struct {
            Title    string   `json:"title"`
            NsuidTxt []string `json:"nsuid_txt"`
        } `json:"docs"`
    } `json:"response"`
}

func (a *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    if strings.TrimSpace(query) == "" { return nil, nil }
    rows := 50
    if limit > 0 && limit < rows { rows = limit }

    out := a.searchIndex(ctx, a.cfg.SearchURL, query, rows)
    if len(out) == 0 {
        // The neighboring locale index sometimes carries titles the
        // English one lacks.
        out = a.searchIndex(ctx, a.cfg.FallbackSearchURL, query, rows)
    }
    if limit > 0 && len(out) > limit { out = out[:limit] }
    return out, nil
}

func (a *Adapter) searchIndex(ctx context.Context, indexURL, query string, rows int) []store.Candidate {
    var body solrResponse
    resp, err := a.client.R().
        SetContext(ctx).
        SetQueryParams(map[string]string{
            "q":     query,
            "rows":  strconv.Itoa(rows),
            "start": "0",
            "fq":    "type:GAME",
            "wt":    "json",
        }).
        SetHeader("Accept", "application/json").
        SetResult(&body).
        Get(indexURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("query", query).Msg("nintendo: search failed")
        return nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("nintendo: search status")
        return nil
    }

    var out []store.Candidate
    for _, doc := range body.Response.Docs {
        if doc.Title == "" || len(doc.NsuidTxt) == 0 || doc.NsuidTxt[0] == "" { continue }
        out = append(out, store.Candidate{Store: store.Nintendo, ExternalID: doc.NsuidTxt[0], Title: doc.Title})
    }
    return out
}

type priceResponse struct {
    Prices []struct {
        SalesStatus   string      `json:"sales_status"`
        RegularPrice  *priceField `json:"regular_price"`
        DiscountPrice *priceField `json:"discount_price"`
    } `json:"prices"`
}

type priceField struct {
    Amount   string `json:"amount"`
    Currency string `json:"currency"`
    RawValue string `json:"raw_value"`
}

func (a *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    if ref.ExternalID == "" { return nil, fmt.Errorf("nintendo: empty nsuid") }
    return a.offers(ctx, ref.ExternalID, strings.ToUpper(region), 0)
}

func (a *Adapter) offers(ctx context.Context, nsuid, region string, depth int) ([]store.Offer, error) {
    var body priceResponse
    resp, err := a.client.R().
        SetContext(ctx).
        SetQueryParams(map[string]string{
            "country": region,
            "ids":     nsuid,
            "lang":    "en",
        }).
        SetHeader("Accept", "application/json").
        SetResult(&body).
        Get(a.cfg.PriceURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("nsuid", nsuid).Str("region", region).Msg("nintendo: price request failed")
        return nil, nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Info().Int("status", resp.StatusCode()).Str("nsuid", nsuid).Str("region", region).Msg("nintendo: price status")
        return a.fallback(ctx, nsuid, region, depth)
    }

    if len(body.Prices) == 0 || body.Prices[0].SalesStatus != "onsale" || body.Prices[0].RegularPrice == nil {
        return a.fallback(ctx, nsuid, region, depth)
    }
    p := body.Prices[0]

    regular, err := strconv.ParseFloat(p.RegularPrice.RawValue, 64)
    if err != nil {
        a.cfg.Logger.Warn().Str("raw", p.RegularPrice.RawValue).Str("nsuid", nsuid).Msg("nintendo: cannot parse price")
        return nil, nil
    }

    offer := store.Offer{
        Store:     store.Nintendo,
        Region:    region,
        Label:     a.label(region),
        Final:     store.Ptr(regular),
        Currency:  p.RegularPrice.Currency,
        Platforms: []string{"Switch"},
    }
    if p.DiscountPrice != nil {
        if discounted, err := strconv.ParseFloat(p.DiscountPrice.RawValue, 64); err == nil && discounted <= regular {
            offer.Final = store.Ptr(discounted)
            offer.Base = store.Ptr(regular)
        }
    }
    return []store.Offer{offer}, nil
}

// fallback retries the reference region once when the requested one has no
// on-sale price.
func (a *Adapter) fallback(ctx context.Context, nsuid, region string, depth int) ([]store.Offer, error) {
    if region == fallbackRegion || depth > 0 { return nil, nil }
    a.cfg.Logger.Info().Str("nsuid", nsuid).Str("region", region).Msg("nintendo: not on sale, falling back to DE")
    return a.offers(ctx, nsuid, fallbackRegion, depth+1)
}

func (a *Adapter) label(region string) string {
    if region == "RU" { return a.cfg.Name }
    return a.cfg.Name + " " + region
}
