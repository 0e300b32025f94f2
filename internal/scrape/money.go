package scrape

import (
    "fmt"
    "regexp"
    "sort"
    "strconv"
    "strings"
)

// Money is a price value scraped from free text, with the currency it was
// denominated in.
type Money struct {
    Value    float64
    Currency string
}

// Longest symbols first so "R$" wins over "$".
var currencySymbols = []struct {
    symbol string
    code   string
}{
    {"R$", "BRL"},
    {"zł", "PLN"},
    {"₽", "RUB"},
    {"€", "EUR"},
    {"£", "GBP"},
    {"₺", "TRY"},
    {"¥", "CNY"},
    {"₹", "INR"},
    {"₴", "UAH"},
    {"₸", "KZT"},
    {"$", "USD"},
}

var regionCurrency = map[string]string{
    "RU": "RUB",
    "TR": "TRY",
    "BR": "BRL",
    "AR": "ARS",
    "IN": "INR",
    "UA": "UAH",
    "KZ": "KZT",
    "PL": "PLN",
    "DE": "EUR",
    "US": "USD",
}

// CurrencyForRegion returns the currency a bare (symbol-less) price most
// likely carries in the given region. Defaults to USD.
func CurrencyForRegion(region string) string {
    if c, ok := regionCurrency[strings.ToUpper(region)]; ok { return c }
    return "USD"
}

// Prices are matched anchored on the currency symbol, in either order. Two
// separate patterns instead of optional groups around one number: a digit
// ending a title ("Redemption 2 $59.99") must not claim the next price's
// symbol and swallow the real price.
var (
    symThenNum = regexp.MustCompile(`(R\$|zł|[₽€£₺¥₹₴₸$])\s*([\d][\d\s\x{00A0}.,]*\d|\d)`)
    numThenSym = regexp.MustCompile(`([\d][\d\s\x{00A0}.,]*\d|\d)\s*(R\$|zł|[₽€£₺¥₹₴₸$])`)
)

func codeForSymbol(symbol string) string {
    for _, cs := range currencySymbols {
        if cs.symbol == symbol { return cs.code }
    }
    return ""
}

// PricesFromText scans rendered page text for price-looking values. Only
// symbol-marked values are kept: a bare number in arbitrary page text is as
// likely a year or a review count as a price. Symbol-before-number wins over
// number-before-symbol when both could claim the same symbol. Unparseable
// hits are dropped.
func PricesFromText(text, region string) []Money {
    type hit struct {
        start int
        money Money
    }
    var hits []hit

    pre := symThenNum.FindAllStringSubmatchIndex(text, -1)
    for _, m := range pre {
        v, err := ParseAmount(text[m[4]:m[5]])
        if err != nil || v <= 0 { continue }
        hits = append(hits, hit{m[0], Money{Value: v, Currency: codeForSymbol(text[m[2]:m[3]])}})
    }
    for _, m := range numThenSym.FindAllStringSubmatchIndex(text, -1) {
        if overlapsAny(m[0], m[1], pre) { continue }
        v, err := ParseAmount(text[m[2]:m[3]])
        if err != nil || v <= 0 { continue }
        hits = append(hits, hit{m[0], Money{Value: v, Currency: codeForSymbol(text[m[4]:m[5]])}})
    }

    sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
    out := make([]Money, 0, len(hits))
    for _, h := range hits {
        out = append(out, h.money)
    }
    if len(out) == 0 { return nil }
    return out
}

func overlapsAny(start, end int, matches [][]int) bool {
    for _, m := range matches {
        if start < m[1] && m[0] < end { return true }
    }
    return false
}

// CurrencyFromText returns the ISO code of the first currency symbol found
// in s, or the region fallback when none is present.
func CurrencyFromText(s, region string) string {
    for _, cs := range currencySymbols {
        if strings.Contains(s, cs.symbol) { return cs.code }
    }
    return CurrencyForRegion(region)
}

// ParseAmount parses a human-formatted money amount. Handles space and NBSP
// grouping plus the two separator conventions: when both ',' and '.' are
// present, the later one is the decimal mark; a lone ',' is decimal.
func ParseAmount(s string) (float64, error) {
    raw := strings.Map(func(r rune) rune {
        if r == ' ' || r == ' ' { return -1 }
        return r
    }, strings.TrimSpace(s))
    if raw == "" { return 0, fmt.Errorf("empty amount") }

    hasComma := strings.Contains(raw, ",")
    hasDot := strings.Contains(raw, ".")
    switch {
    case hasComma && hasDot:
        if strings.LastIndex(raw, ",") > strings.LastIndex(raw, ".") {
            // 1.234,56
            raw = strings.ReplaceAll(raw, ".", "")
            raw = strings.ReplaceAll(raw, ",", ".")
        } else {
            // 1,234.56
            raw = strings.ReplaceAll(raw, ",", "")
        }
    case hasComma:
        raw = strings.ReplaceAll(raw, ",", ".")
    }
    v, err := strconv.ParseFloat(raw, 64)
    if err != nil { return 0, fmt.Errorf("parse amount %q: %w", s, err) }
    return v, nil
}
