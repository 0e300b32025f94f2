package xbox

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

const defaultBaseURL = "https://www.xbox.com"

var regionLocale = map[string]string{
    "RU": "ru-ru",
    "US": "en-us",
    "TR": "tr-tr",
    "BR": "pt-br",
    "AR": "es-ar",
    "PL": "pl-pl",
    "DE": "de-de",
}

func localeFor(region string) string {
    if l, ok := regionLocale[strings.ToUpper(region)]; ok { return l }
    return "en-us"
}

var hardwareNames = map[string]string{
    "PC":          "PC",
    "XboxOne":     "Xbox One",
    "XboxSeriesX": "Xbox Series X",
    "XboxSeriesS": "Xbox Series S",
}

type Config struct {
    Name    string
    BaseURL string
    Logger  zerolog.Logger
}

// Adapter scrapes xbox.com pages. Both the search results page and the
// product page embed the same "productSummaries" object, so one extraction
// routine serves both operations.
type Adapter struct {
    cfg    Config
    client *resty.Client
}

func New(cfg Config, client *resty.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "Xbox Store" }
    if cfg.BaseURL == "" { cfg.BaseURL = defaultBaseURL }
    return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }
func (a *Adapter) ID() store.ID { return store.Xbox }

type summary struct {
    Title                        string   `json:"title"`
    ProductTitle                 string   `json:"productTitle"`
    AvailableOn                  []string `json:"availableOn"`
    IncludedWithPassesProductIds []string `json:"includedWithPassesProductIds"`
    SpecificPrices               struct {
        Purchaseable []priceEntry `json:"purchaseable"`
    } `json:"specificPrices"`
}

type priceEntry struct {
    ListPrice       float64 `json:"listPrice"`
    MSRP            float64 `json:"msrp"`
    RecurrencePrice float64 `json:"recurrencePrice"`
    Currency        string  `json:"currency"`
}

func (a *Adapter) productSummaries(ctx context.Context, pageURL, locale, region string) (map[string]summary, error) {
    resp, err := a.client.R().
        SetContext(ctx).
        SetHeader("Accept", "text/html,application/xhtml+xml").
        SetHeader("Accept-Language", locale).
        SetHeader("x-market", region).
        Get(pageURL)
    if err != nil { return nil, err }
    if resp.StatusCode() != 200 { return nil, fmt.Errorf("status %d", resp.StatusCode()) }

    raw := scrape.EmbeddedJSON(resp.String(), "productSummaries")
    if raw == nil { return nil, fmt.Errorf("productSummaries not found") }
    var out map[string]summary
    if err := json.Unmarshal(raw, &out); err != nil { return nil, err }
    return out, nil
}

func (a *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    if strings.TrimSpace(query) == "" { return nil, nil }
    region = strings.ToUpper(region)
    locale := localeFor(region)
    searchURL := fmt.Sprintf("%s/%s/search?q=%s&cat=games", a.cfg.BaseURL, locale, url.QueryEscape(query))

    summaries, err := a.productSummaries(ctx, searchURL, locale, region)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("query", query).Msg("xbox: search failed")
        return nil, nil
    }

    // Map order is randomized per run; fix it so limit truncation and the
    // downstream grouping see a stable candidate order.
    pids := make([]string, 0, len(summaries))
    for pid := range summaries {
        pids = append(pids, pid)
    }
    sort.Strings(pids)

    var out []store.Candidate
    for _, pid := range pids {
        s := summaries[pid]
        title := s.Title
        if title == "" { title = s.ProductTitle }
        if title == "" { continue }
        out = append(out, store.Candidate{Store: store.Xbox, ExternalID: pid, Title: title})
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

func (a *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    if ref.ExternalID == "" { return nil, fmt.Errorf("xbox: empty product id") }
    region = strings.ToUpper(region)
    locale := localeFor(region)
    pageURL := fmt.Sprintf("%s/%s/games/store/x/%s", a.cfg.BaseURL, locale, ref.ExternalID)

    summaries, err := a.productSummaries(ctx, pageURL, locale, region)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("pid", ref.ExternalID).Str("region", region).Msg("xbox: offers failed")
        return nil, nil
    }
    s, ok := summaries[ref.ExternalID]
    if !ok {
        a.cfg.Logger.Info().Str("pid", ref.ExternalID).Msg("xbox: product missing from page payload")
        return nil, nil
    }

    // listPrice and msrp are one-time purchase prices; recurrencePrice is
    // the subscription-discounted one. Track the extremes separately so a
    // normal price and a Game Pass price can both be reported.
    var (
        full, fullBase, sub float64
        currency            string
    )
    for _, p := range s.SpecificPrices.Purchaseable {
        if p.Currency != "" { currency = p.Currency }
        amount := p.ListPrice
        if amount <= 0 { amount = p.MSRP }
        if amount > full { full = amount }
        if p.MSRP > fullBase { fullBase = p.MSRP }
        if p.RecurrencePrice > 0 && (sub == 0 || p.RecurrencePrice < sub) { sub = p.RecurrencePrice }
    }
    if currency == "" { currency = "USD" }

    gamePass := len(s.IncludedWithPassesProductIds) > 0
    platforms := platformNames(s.AvailableOn)
    label := a.label(region)

    var offers []store.Offer
    if full > 0 {
        o := store.Offer{
            Store: store.Xbox, Region: region, Label: label,
            Final: store.Ptr(full), Currency: currency, URL: pageURL,
            SubscriptionIncluded: gamePass, Platforms: platforms,
        }
        if fullBase > full { o.Base = store.Ptr(fullBase) }
        offers = append(offers, o)
    }
    if sub > 0 && sub < full {
        offers = append(offers, store.Offer{
            Store: store.Xbox, Region: region, Label: label + " (Game Pass)",
            Final: store.Ptr(sub), Currency: currency, URL: pageURL,
            SubscriptionIncluded: true, Platforms: platforms,
        })
    }
    return offers, nil
}

func (a *Adapter) label(region string) string {
    if region == "RU" { return a.cfg.Name }
    return a.cfg.Name + " " + region
}

func platformNames(hardware []string) []string {
    var out []string
    for _, h := range hardware {
        if name, ok := hardwareNames[h]; ok {
            out = append(out, name)
            continue
        }
        out = append(out, h)
    }
    return out
}
