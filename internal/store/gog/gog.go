package gog

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"

    "gameprices/internal/store"
)

const (
    defaultSearchURL = "https://embed.gog.com/games/ajax/filtered"
    defaultGameURL   = "https://www.gog.com/game/"

    productTTL = 30 * time.Minute
)

type Config struct {
    Name      string
    SearchURL string
    GameURL   string
    Logger    zerolog.Logger
}

// Adapter uses the embed.gog.com catalog search. The search payload already
// carries regional prices, so offers are served from products remembered at
// search time; there is no standalone regional price endpoint, and a region
// not covered by a recent search triggers a re-search by title with that
// region's country code.
type Adapter struct {
    cfg    Config
    client *resty.Client

    mu       sync.Mutex
    products map[string]cachedProduct
}

type cachedProduct struct {
    p       product
    expires time.Time
}

func New(cfg Config, client *resty.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "GOG.com" }
    if cfg.SearchURL == "" { cfg.SearchURL = defaultSearchURL }
    if cfg.GameURL == "" { cfg.GameURL = defaultGameURL }
    return &Adapter{cfg: cfg, client: client, products: make(map[string]cachedProduct)}
}

func (a *Adapter) Name() string { return a.cfg.Name }
func (a *Adapter) ID() store.ID { return store.GOG }

type product struct {
    ID    any    `json:"id"`
    Title string `json:"title"`
    Slug  string `json:"slug"`
    URL   string `json:"url"`
    Movie bool   `json:"movie"`
    Price struct {
        IsFree      bool   `json:"isFree"`
        FinalAmount string `json:"finalAmount"`
        BaseAmount  string `json:"baseAmount"`
        Currency    string `json:"currency"`
    } `json:"price"`
}

func (p product) externalID() string {
    switch v := p.ID.(type) {
    case string:
        return v
    case float64:
        return strconv.FormatInt(int64(v), 10)
    default:
        return ""
    }
}

type searchResponse struct {
    Products []product `json:"products"`
}

func (a *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    if strings.TrimSpace(query) == "" { return nil, nil }
    region = strings.ToUpper(region)

    var body searchResponse
    resp, err := a.client.R().
        SetContext(ctx).
        SetQueryParams(map[string]string{
            "mediaType": "game",
            "search":    query,
            "country":   region,
        }).
        SetHeader("Accept", "application/json").
        SetResult(&body).
        Get(a.cfg.SearchURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("query", query).Msg("gog: search failed")
        return nil, nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("gog: search status")
        return nil, nil
    }

    var out []store.Candidate
    for _, p := range a.filterGames(body.Products) {
        id := p.externalID()
        if id == "" || p.Title == "" { continue }
        a.remember(region, id, p)
        out = append(out, store.Candidate{Store: store.GOG, ExternalID: id, Title: p.Title, InvariantName: p.Title})
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

// filterGames drops movies and soundtrack releases; the catalog mixes them
// in with games.
func (a *Adapter) filterGames(products []product) []product {
    out := products[:0]
    for _, p := range products {
        if p.Movie { continue }
        l := strings.ToLower(p.Title)
        if strings.Contains(l, "soundtrack") || strings.Contains(l, " ost ") || strings.HasSuffix(l, " ost") { continue }
        out = append(out, p)
    }
    return out
}

func (a *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    if ref.ExternalID == "" { return nil, fmt.Errorf("gog: empty product id") }
    return a.offers(ctx, ref.ExternalID, ref.InvariantName, strings.ToUpper(region), 0)
}

func (a *Adapter) offers(ctx context.Context, id, title, region string, depth int) ([]store.Offer, error) {
    p, ok := a.recall(region, id)
    if !ok {
        // The original search usually ran with a different country code;
        // the catalog has to be asked again for this region's prices.
        if title == "" { title = a.rememberedTitle(id) }
        if title != "" {
            if _, err := a.Search(ctx, title, region, 0); err == nil {
                p, ok = a.recall(region, id)
            }
        }
    }
    if !ok {
        a.cfg.Logger.Warn().Str("id", id).Str("region", region).Msg("gog: product not seen in a recent search")
        return nil, nil
    }

    slug := p.Slug
    if slug == "" {
        parts := strings.Split(p.URL, "/")
        slug = parts[len(parts)-1]
    }
    if slug == "" { return nil, nil }
    pageURL := a.cfg.GameURL + slug

    if p.Price.IsFree {
        final, cur := store.Free()
        return []store.Offer{{
            Store: store.GOG, Region: region, Label: a.label(region),
            Final: final, Currency: cur, URL: pageURL, Platforms: []string{"PC"},
        }}, nil
    }

    if p.Price.FinalAmount == "" {
        // Title exists but carries no price in this region; the US catalog
        // usually has it under a near-identical name.
        if region != "US" && depth == 0 {
            a.cfg.Logger.Warn().Str("id", id).Str("region", region).Msg("gog: no regional price, retrying via US catalog")
            if usID := a.closestUSMatch(ctx, p.Title); usID != "" {
                return a.offers(ctx, usID, p.Title, "US", depth+1)
            }
        }
        return nil, nil
    }

    final, err := strconv.ParseFloat(p.Price.FinalAmount, 64)
    if err != nil {
        a.cfg.Logger.Warn().Str("raw", p.Price.FinalAmount).Str("id", id).Msg("gog: cannot parse price")
        return nil, nil
    }
    currency := strings.ToUpper(p.Price.Currency)
    if currency == "" { currency = "USD" }

    offer := store.Offer{
        Store: store.GOG, Region: region, Label: a.label(region),
        Final: store.Ptr(final), Currency: currency, URL: pageURL,
        Platforms: []string{"PC"},
    }
    if base, err := strconv.ParseFloat(p.Price.BaseAmount, 64); err == nil && base > final {
        offer.Base = store.Ptr(base)
    }
    return []store.Offer{offer}, nil
}

// closestUSMatch searches the US catalog for the title and returns the id
// of the most similar result.
func (a *Adapter) closestUSMatch(ctx context.Context, title string) string {
    candidates, err := a.Search(ctx, title, "US", 0)
    if err != nil || len(candidates) == 0 { return "" }
    best, bestScore := "", -1.0
    for _, c := range candidates {
        if score := tokenSetRatio(title, c.Title); score > bestScore {
            best, bestScore = c.ExternalID, score
        }
    }
    return best
}

// tokenSetRatio is a word-level Dice similarity on lowercased token sets,
// in [0, 1].
func tokenSetRatio(a, b string) float64 {
    ta, tb := tokenSet(a), tokenSet(b)
    if len(ta) == 0 || len(tb) == 0 { return 0 }
    shared := 0
    for tok := range ta {
        if _, ok := tb[tok]; ok { shared++ }
    }
    return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func tokenSet(s string) map[string]struct{} {
    out := make(map[string]struct{})
    for _, tok := range strings.Fields(strings.ToLower(s)) {
        out[tok] = struct{}{}
    }
    return out
}

func (a *Adapter) label(region string) string {
    if region == "RU" { return a.cfg.Name }
    return a.cfg.Name + " " + region
}

func (a *Adapter) remember(region, id string, p product) {
    a.mu.Lock()
    defer a.mu.Unlock()
    now := time.Now()
    for k, c := range a.products {
        if now.After(c.expires) { delete(a.products, k) }
    }
    a.products[region+"\x1f"+id] = cachedProduct{p: p, expires: now.Add(productTTL)}
}

// rememberedTitle finds the product's title under any region, so a
// region-scoped re-search can run when only the id is known here.
func (a *Adapter) rememberedTitle(id string) string {
    a.mu.Lock()
    defer a.mu.Unlock()
    now := time.Now()
    suffix := "\x1f" + id
    for k, c := range a.products {
        if strings.HasSuffix(k, suffix) && now.Before(c.expires) { return c.p.Title }
    }
    return ""
}

func (a *Adapter) recall(region, id string) (product, bool) {
    a.mu.Lock()
    defer a.mu.Unlock()
    c, ok := a.products[region+"\x1f"+id]
    if !ok || time.Now().After(c.expires) { return product{}, false }
    return c.p, true
}
