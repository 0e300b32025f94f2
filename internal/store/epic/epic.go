package epic

import (
    "context"
    "fmt"
    "regexp"
    "strings"

    "github.com/PuerkitoBio/goquery"
    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"

    "gameprices/internal/scrape"
    "gameprices/internal/store"
)

const (
    defaultGraphQLURL = "https://store.epicgames.com/graphql"
    defaultStoreURL   = "https://store.epicgames.com"
)

// searchQuery is the fixed searchStore document. Epic's GraphQL schema is
// not public; the selection set mirrors what the store frontend requests.
const searchQuery = `query searchStoreQuery($keywords: String!, $country: String!, $locale: String, $count: Int) {
  Catalog {
    searchStore(keywords: $keywords, country: $country, locale: $locale, count: $count) {
      elements {
        title
        id
        namespace
        productSlug
        urlSlug
        price(country: $country) {
          totalPrice {
            discountPrice
            originalPrice
            currencyCode
          }
        }
      }
    }
  }
}`

type Config struct {
    Name       string
    GraphQLURL string
    StoreURL   string
    Logger     zerolog.Logger
}

// Adapter queries the Epic Games Store GraphQL endpoint. Prices arrive in
// minor units. For RU the endpoint frequently misattributes geography and
// quotes USD; a secondary HTML fetch recovers the ruble price when it does.
type Adapter struct {
    cfg    Config
    client *resty.Client
}

func New(cfg Config, client *resty.Client) *Adapter {
    if cfg.Name == "" { cfg.Name = "Epic Games" }
    if cfg.GraphQLURL == "" { cfg.GraphQLURL = defaultGraphQLURL }
    if cfg.StoreURL == "" { cfg.StoreURL = defaultStoreURL }
    return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }
func (a *Adapter) ID() store.ID { return store.Epic }

type element struct {
    Title       string `json:"title"`
    ID          string `json:"id"`
    Namespace   string `json:"namespace"`
    ProductSlug string `json:"productSlug"`
    URLSlug     string `json:"urlSlug"`
    Price       struct {
        TotalPrice struct {
            DiscountPrice *float64 `json:"discountPrice"`
            OriginalPrice *float64 `json:"originalPrice"`
            CurrencyCode  string   `json:"currencyCode"`
        } `json:"totalPrice"`
    } `json:"price"`
}

type searchResponse struct {
    Data struct {
        Catalog struct {
            SearchStore struct {
                Elements []element `json:"elements"`
            } `json:"searchStore"`
        } `json:"Catalog"`
    } `json:"data"`
}

func localeFor(region string) string {
    if strings.EqualFold(region, "RU") { return "ru-RU" }
    return "en-US"
}

func (a *Adapter) searchStore(ctx context.Context, keywords, region string, count int) ([]element, error) {
    var body searchResponse
    resp, err := a.client.R().
        SetContext(ctx).
        SetHeader("Content-Type", "application/json").
        SetBody(map[string]any{
            "query": searchQuery,
            "variables": map[string]any{
                "keywords": keywords,
                "country":  strings.ToUpper(region),
                "locale":   localeFor(region),
                "count":    count,
            },
        }).
        SetResult(&body).
        Post(a.cfg.GraphQLURL)
    if err != nil { return nil, err }
    if resp.StatusCode() != 200 { return nil, fmt.Errorf("graphql status %d", resp.StatusCode()) }
    return body.Data.Catalog.SearchStore.Elements, nil
}

func (e element) slug() string {
    slug := e.ProductSlug
    if slug == "" { slug = e.URLSlug }
    return strings.TrimSuffix(slug, "/home")
}

// externalID is "namespace/slug". Fortnite and a few first-party titles
// come back with no namespace.
func (e element) externalID() string {
    ns := e.Namespace
    if ns == "" { ns = "_nons" }
    return ns + "/" + e.slug()
}

func (a *Adapter) Search(ctx context.Context, query, region string, limit int) ([]store.Candidate, error) {
    if strings.TrimSpace(query) == "" { return nil, nil }
    count := 40
    if limit > 0 && limit < count { count = limit }

    elements, err := a.searchStore(ctx, query, region, count)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("query", query).Msg("epic: search failed")
        return nil, nil
    }

    var out []store.Candidate
    for _, e := range elements {
        if e.Title == "" || e.Title == "Mystery Game" || e.slug() == "" { continue }
        out = append(out, store.Candidate{Store: store.Epic, ExternalID: e.externalID(), Title: e.Title})
        if limit > 0 && len(out) >= limit { break }
    }
    return out, nil
}

func (a *Adapter) Offers(ctx context.Context, ref store.Ref, region string) ([]store.Offer, error) {
    if ref.ExternalID == "" { return nil, fmt.Errorf("epic: empty product id") }
    region = strings.ToUpper(region)
    slug := ref.ExternalID
    if i := strings.IndexByte(slug, '/'); i >= 0 { slug = slug[i+1:] }
    if slug == "" { return nil, fmt.Errorf("epic: malformed product id %q", ref.ExternalID) }

    elements, err := a.searchStore(ctx, slug, region, 1)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("slug", slug).Str("region", region).Msg("epic: offers lookup failed")
        return nil, nil
    }
    if len(elements) == 0 { return nil, nil }
    e := elements[0]

    pageURL := a.productURL(region, slug)
    total := e.Price.TotalPrice
    if total.DiscountPrice == nil {
        a.cfg.Logger.Warn().Str("slug", slug).Msg("epic: payload carries no price")
        return nil, nil
    }

    label := a.label(region)
    if *total.DiscountPrice == 0 {
        final, cur := store.Free()
        return []store.Offer{{
            Store: store.Epic, Region: region, Label: label,
            Final: final, Currency: cur, URL: pageURL, Platforms: []string{"PC"},
        }}, nil
    }

    price := *total.DiscountPrice / 100
    currency := total.CurrencyCode
    if currency == "" { currency = "USD" }

    offer := store.Offer{
        Store: store.Epic, Region: region, Label: label,
        Final: store.Ptr(price), Currency: currency, URL: pageURL,
        Platforms: []string{"PC"},
    }
    if total.OriginalPrice != nil {
        if base := *total.OriginalPrice / 100; base > price { offer.Base = store.Ptr(base) }
    }

    if region == "RU" && currency != "RUB" {
        if rub, u, ok := a.rublePriceFromHTML(ctx, pageURL, slug); ok {
            offer.Final = store.Ptr(rub)
            offer.Currency = "RUB"
            offer.Base = nil
            offer.URL = u
        }
    }
    return []store.Offer{offer}, nil
}

var rubleRe = regexp.MustCompile(`([\d][\d\s\x{00A0}]*(?:[.,]\d{1,2})?)\s*₽`)

// rublePriceFromHTML recovers the server-rendered ruble price when GraphQL
// quotes the wrong currency for RU. A 403 on the regional path is retried
// once on the generic path. Returns the URL that actually served the price.
func (a *Adapter) rublePriceFromHTML(ctx context.Context, pageURL, slug string) (float64, string, bool) {
    resp, err := a.client.R().
        SetContext(ctx).
        SetHeader("Accept", "text/html,application/xhtml+xml").
        SetHeader("Accept-Language", "ru,en;q=0.8").
        Get(pageURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("url", pageURL).Msg("epic: html fallback request failed")
        return 0, "", false
    }
    if resp.StatusCode() == 403 {
        alt := strings.Replace(pageURL, "/ru/p/", "/p/", 1)
        a.cfg.Logger.Info().Str("url", alt).Msg("epic: html fallback got 403, retrying generic path")
        resp, err = a.client.R().
            SetContext(ctx).
            SetHeader("Accept", "text/html,application/xhtml+xml").
            SetHeader("Accept-Language", "ru,en;q=0.8").
            Get(alt)
        if err != nil || resp.StatusCode() != 200 { return 0, "", false }
        pageURL = alt
    } else if resp.StatusCode() != 200 {
        a.cfg.Logger.Info().Int("status", resp.StatusCode()).Str("url", pageURL).Msg("epic: html fallback status")
        return 0, "", false
    }

    doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
    if err != nil { return 0, "", false }
    m := rubleRe.FindStringSubmatch(doc.Text())
    if m == nil {
        a.cfg.Logger.Info().Str("slug", slug).Msg("epic: no ruble price on page")
        return 0, "", false
    }
    v, err := scrape.ParseAmount(m[1])
    if err != nil || v <= 0 { return 0, "", false }
    return v, pageURL, true
}

func (a *Adapter) productURL(region, slug string) string {
    if region == "RU" { return a.cfg.StoreURL + "/ru/p/" + slug }
    return a.cfg.StoreURL + "/p/" + slug
}

func (a *Adapter) label(region string) string {
    if region == "RU" { return a.cfg.Name }
    return a.cfg.Name + " " + region
}
