package playstation

import (
    "context"
    "encoding/json"
    "sort"
    "strings"

    "gameprices/internal/store"
)

// Persisted query identity for productRetrieveForCtasWithPrice. The hash is
// pinned server-side; changing the query text upstream invalidates it.
const (
    opProductCTA   = "productRetrieveForCtasWithPrice"
    hashProductCTA = "8872b0419dcab2fea5916ef698544c237b1096f9e76acc6aacf629551adee8cd"
)

// Currencies quoted in whole units rather than minor units.
var noDecimalCurrencies = map[string]struct{}{
    "INR": {},
    "JPY": {},
}

type ctaResponse struct {
    Data struct {
        ProductRetrieve *struct {
            WebCTAs []webCTA `json:"webctas"`
        } `json:"productRetrieve"`
    } `json:"data"`
}

type webCTA struct {
    Type  string `json:"type"`
    Price *struct {
        IsFree          bool     `json:"isFree"`
        CurrencyCode    string   `json:"currencyCode"`
        BasePriceValue  *float64 `json:"basePriceValue"`
        DiscountedValue *float64 `json:"discountedValue"`
        ServiceBranding []string `json:"serviceBranding"`
    } `json:"price"`
}

// offersFromGraphQL is the session-gated persisted-query strategy. Returns
// nil on any failure so the caller can move down the strategy ladder.
func (a *Adapter) offersFromGraphQL(ctx context.Context, pid, region string) []store.Offer {
    variables, _ := json.Marshal(map[string]string{"productId": pid})
    extensions, _ := json.Marshal(map[string]any{
        "persistedQuery": map[string]any{"version": 1, "sha256Hash": hashProductCTA},
    })

    var body ctaResponse
    resp, err := a.client.R().
        SetContext(ctx).
        SetQueryParams(map[string]string{
            "operationName": opProductCTA,
            "variables":     string(variables),
            "extensions":    string(extensions),
        }).
        SetHeader("x-apollo-operation-name", opProductCTA).
        SetHeader("x-ps-country-code", region).
        SetHeader("Accept", "application/json").
        SetHeader("Accept-Language", localeFor(region)).
        SetHeader("Cookie", a.cfg.SessionCookie).
        SetResult(&body).
        Get(a.cfg.GraphQLURL)
    if err != nil {
        a.cfg.Logger.Warn().Err(err).Str("pid", pid).Str("region", region).Msg("playstation: cta request failed")
        return nil
    }
    if resp.StatusCode() != 200 {
        a.cfg.Logger.Info().Int("status", resp.StatusCode()).Str("pid", pid).Msg("playstation: cta status")
        return nil
    }
    if body.Data.ProductRetrieve == nil {
        a.cfg.Logger.Warn().Str("pid", pid).Msg("playstation: cta payload shape changed")
        return nil
    }

    productURL := a.productURL(region, pid)
    label := a.label(region)
    var offers []store.Offer
    for _, cta := range body.Data.ProductRetrieve.WebCTAs {
        p := cta.Price
        if p == nil { continue }
        if p.IsFree {
            final, cur := store.Free()
            offers = append(offers, store.Offer{
                Store: store.PlayStation, Region: region, Label: label,
                Final: final, Currency: cur, URL: productURL,
                Platforms: []string{"PS4", "PS5"},
            })
            continue
        }
        divisor := 100.0
        if _, ok := noDecimalCurrencies[p.CurrencyCode]; ok { divisor = 1 }

        var base, final *float64
        if p.BasePriceValue != nil { base = store.Ptr(*p.BasePriceValue / divisor) }
        if p.DiscountedValue != nil { final = store.Ptr(*p.DiscountedValue / divisor) }
        if final == nil { final = base }
        if final == nil { continue }

        plus := strings.Contains(cta.Type, "PS_PLUS") || strings.Contains(strings.Join(p.ServiceBranding, ""), "PS_PLUS")
        offers = append(offers, store.Offer{
            Store:                store.PlayStation,
            Region:               region,
            Label:                label,
            Base:                 base,
            Final:                final,
            Currency:             p.CurrencyCode,
            URL:                  productURL,
            SubscriptionIncluded: plus,
            DepositOnly:          final != nil && a.depositThreshold(p.CurrencyCode, region) > *final,
            Platforms:            []string{"PS4", "PS5"},
        })
    }
    return dedupePreferringPlus(offers)
}

// dedupePreferringPlus collapses offers with equal (price, currency),
// keeping the PS Plus variant when both exist.
func dedupePreferringPlus(offers []store.Offer) []store.Offer {
    sort.SliceStable(offers, func(i, j int) bool {
        if offers[i].SubscriptionIncluded != offers[j].SubscriptionIncluded {
            return offers[i].SubscriptionIncluded
        }
        fi, fj := 0.0, 0.0
        if offers[i].Final != nil { fi = *offers[i].Final }
        if offers[j].Final != nil { fj = *offers[j].Final }
        return fi < fj
    })
    type key struct {
        price    float64
        currency string
    }
    seen := make(map[key]struct{}, len(offers))
    out := offers[:0]
    for _, o := range offers {
        k := key{currency: o.Currency}
        if o.Final != nil { k.price = *o.Final }
        if _, dup := seen[k]; dup { continue }
        seen[k] = struct{}{}
        out = append(out, o)
    }
    return out
}
