package playstation

import (
    "context"
    "encoding/json"
    "fmt"
    "regexp"
    "sort"
    "strings"

    "gameprices/internal/scrape"
    "gameprices/internal/store"
)

// offersFromProductPage is the public embedded-JSON strategy: the product
// page ships the apolloState with a Product record holding price strings.
func (a *Adapter) offersFromProductPage(ctx context.Context, pid, region string) []store.Offer {
    locale := localeFor(region)
    pageURL := a.productURL(region, pid)

    resp, err := a.client.R().
        SetContext(ctx).
        SetHeader("Accept", "text/html,application/xhtml+xml").
        SetHeader("Accept-Language", locale).
        Get(pageURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("pid", pid).Msg("playstation: product page request failed")
        return nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Info().Int("status", resp.StatusCode()).Str("pid", pid).Msg("playstation: product page status")
        return nil
    }

    raw := scrape.NextData(resp.String())
    if raw == nil { return nil }
    var data nextData
    if err := json.Unmarshal(raw, &data); err != nil {
        a.cfg.Logger.Warn().Err(err).Str("pid", pid).Msg("playstation: product payload decode")
        return nil
    }

    var product *apolloProduct
    for key, rawItem := range data.Props.ApolloState {
        if !strings.HasPrefix(key, "Product:") { continue }
        var p apolloProduct
        if err := json.Unmarshal(rawItem, &p); err != nil { continue }
        if p.ID == pid {
            product = &p
            break
        }
    }
    if product == nil || product.Price == nil { return nil }

    label := a.label(region)
    platforms := product.Platforms
    if len(platforms) == 0 { platforms = []string{"PS4", "PS5"} }

    if product.Price.IsFree {
        final, cur := store.Free()
        return []store.Offer{{
            Store: store.PlayStation, Region: region, Label: label,
            Final: final, Currency: cur, URL: pageURL, Platforms: platforms,
        }}
    }

    finalStr := product.Price.DiscountedPrice
    if finalStr == "" { finalStr = product.Price.BasePrice }
    if finalStr == "" { return nil }

    currency := scrape.CurrencyFromText(finalStr, region)
    final, err := parsePriceString(finalStr)
    if err != nil {
        a.cfg.Logger.Warn().Str("raw", finalStr).Str("pid", pid).Msg("playstation: cannot parse price")
        return nil
    }

    offer := store.Offer{
        Store:       store.PlayStation,
        Region:      region,
        Label:       label,
        Final:       store.Ptr(final),
        Currency:    currency,
        URL:         pageURL,
        DepositOnly: a.depositThreshold(currency, region) > final,
        Platforms:   platforms,
    }
    if product.Price.BasePrice != "" && product.Price.BasePrice != finalStr {
        if base, err := parsePriceString(product.Price.BasePrice); err == nil && base >= final {
            offer.Base = store.Ptr(base)
        }
    }
    for _, branding := range [][]string{product.Price.ServiceBranding, product.Price.UpsellServiceBranding} {
        if strings.Contains(strings.Join(branding, ""), "PLUS") {
            offer.SubscriptionIncluded = true
            break
        }
    }
    return []store.Offer{offer}
}

var numberInPrice = regexp.MustCompile(`[\d][\d\s\x{00A0}.,]*\d|\d`)

func parsePriceString(s string) (float64, error) {
    m := numberInPrice.FindString(s)
    if m == "" { return 0, fmt.Errorf("no number in %q", s) }
    return scrape.ParseAmount(m)
}

// offersFromGamesPage is the last-resort strategy: scan the /games/<slug>
// page text for currency-marked values and select the full-edition price.
func (a *Adapter) offersFromGamesPage(ctx context.Context, ref store.Ref, region string) []store.Offer {
    slug := ref.InvariantName
    if slug == "" { slug = slugFromProductID(ref.ExternalID) }
    if slug == "" { return nil }

    locale := localeFor(region)
    pageURL := fmt.Sprintf("%s/%s/games/%s", a.cfg.BaseURL, locale, slug)
    resp, err := a.client.R().
        SetContext(ctx).
        SetHeader("Accept", "text/html,application/xhtml+xml").
        SetHeader("Accept-Language", locale).
        Get(pageURL)
    if err != nil || resp.StatusCode() != 200 { return nil }

    prices := scrape.PricesFromText(resp.String(), region)
    if len(prices) == 0 { return nil }

    currency, values := dominantCurrency(prices)
    deluxe := isDeluxeTitle(ref.InvariantName)
    threshold := a.depositThreshold(currency, region)
    selected, deposit := a.selectFullPrice(values, deluxe, threshold)
    if selected <= 0 { return nil }

    return []store.Offer{{
        Store:       store.PlayStation,
        Region:      region,
        Label:       a.label(region),
        Final:       store.Ptr(selected),
        Currency:    currency,
        URL:         a.productURL(region, ref.ExternalID),
        DepositOnly: deposit,
        Platforms:   []string{"PS4", "PS5"},
    }}
}

// dominantCurrency keeps only the values of the most frequent currency on
// the page; mixed-currency noise comes from ads and bundles.
func dominantCurrency(prices []scrape.Money) (string, []float64) {
    counts := make(map[string]int)
    for _, p := range prices { counts[p.Currency]++ }
    best := ""
    for cur, n := range counts {
        if best == "" || n > counts[best] { best = cur }
    }
    var values []float64
    for _, p := range prices {
        if p.Currency == best { values = append(values, p.Value) }
    }
    return best, values
}

var deluxeMarkers = []string{"deluxe", "ultimate", "bundle", "premium", "gold", "complete"}

func isDeluxeTitle(name string) bool {
    l := strings.ToLower(name)
    for _, m := range deluxeMarkers {
        if strings.Contains(l, m) { return true }
    }
    return false
}

// selectFullPrice picks the full-edition price out of every value scraped
// from one page. Values whose next larger neighbor exceeds them by
// NoiseRatio are unrelated micro-transactions and dropped. Standard
// editions take the minimum above the deposit threshold; deluxe-style
// editions take the maximum. When nothing clears the threshold the lowest
// survivor is returned flagged as a deposit.
func (a *Adapter) selectFullPrice(values []float64, deluxe bool, depositThreshold float64) (price float64, deposit bool) {
    if len(values) == 0 { return 0, false }

    uniq := dedupeSorted(values)

    // A value sitting NoiseRatio below its next larger neighbor is an
    // unrelated micro-transaction (add-on currency packs sit far below the
    // real edition prices). The largest value is never dropped.
    kept := make([]float64, 0, len(uniq))
    for i, v := range uniq {
        if i < len(uniq)-1 && uniq[i+1]/v > a.cfg.NoiseRatio { continue }
        kept = append(kept, v)
    }

    if deluxe {
        return kept[len(kept)-1], false
    }
    for _, v := range kept {
        if v >= depositThreshold {
            return v, false
        }
    }
    return kept[0], true
}

func dedupeSorted(values []float64) []float64 {
    sorted := append([]float64(nil), values...)
    sort.Float64s(sorted)
    out := sorted[:0]
    for i, v := range sorted {
        if i > 0 && v == sorted[i-1] { continue }
        out = append(out, v)
    }
    return out
}

// productIDRe is the store's id shape, e.g.
// "EP1004-CUSA08519_00-REDEMPTIONFULL02": region prefix, sku with a
// two-digit variant, then the slug suffix.
var productIDRe = regexp.MustCompile(`^[A-Z]{2}\d{4}-[A-Z]{4}\d{5}_\d{2}-([A-Za-z0-9_]+)$`)

// slugFromProductID derives a page slug from a well-formed product id as a
// last resort. Strings that merely contain hyphens are rejected.
func slugFromProductID(pid string) string {
    m := productIDRe.FindStringSubmatch(pid)
    if m == nil { return "" }
    return strings.ToLower(m[1])
}
