package scrape

import (
    "encoding/json"
    "testing"

    "github.com/stretchr/testify/require"
)

func TestEmbeddedJSON_BalancesNestedBraces(t *testing.T) {
    html := `<script>window.__DATA__={"foo":1,"productSummaries":{"9PGZ":{"title":"Halo {Infinite}","specificPrices":{"purchaseable":[{"listPrice":59.99}]}}},"bar":2}</script>`
    raw := EmbeddedJSON(html, "productSummaries")
    require.NotNil(t, raw)

    var got map[string]struct {
        Title string `json:"title"`
    }
    require.NoError(t, json.Unmarshal(raw, &got))
    require.Equal(t, "Halo {Infinite}", got["9PGZ"].Title)
}

func TestEmbeddedJSON_BracesInsideStringsIgnored(t *testing.T) {
    html := `"productSummaries":{"id":{"note":"quote \" and } brace","n":1}}`
    raw := EmbeddedJSON(html, "productSummaries")
    require.NotNil(t, raw)
    require.True(t, json.Valid(raw))
}

func TestEmbeddedJSON_MissingKeyOrUnclosed(t *testing.T) {
    require.Nil(t, EmbeddedJSON(`<html>nothing here</html>`, "productSummaries"))
    require.Nil(t, EmbeddedJSON(`"productSummaries":{"never":"closes"`, "productSummaries"))
}

func TestNextData(t *testing.T) {
    html := `<html><head></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"apolloState":{"Product:ABC":{"id":"ABC","name":"Bloodborne"}}}}</script>
</body></html>`
    raw := NextData(html)
    require.NotNil(t, raw)
    var doc struct {
        Props struct {
            ApolloState map[string]json.RawMessage `json:"apolloState"`
        } `json:"props"`
    }
    require.NoError(t, json.Unmarshal(raw, &doc))
    require.Contains(t, doc.Props.ApolloState, "Product:ABC")

    require.Nil(t, NextData(`<html><body>no script</body></html>`))
    require.Nil(t, NextData(`<script id="__NEXT_DATA__">not json</script>`))
}

func TestParseAmount(t *testing.T) {
    cases := []struct {
        in   string
        want float64
    }{
        {"59.99", 59.99},
        {"59,99", 59.99},
        {"1 499", 1499},
        {"1 499,50", 1499.50},
        {"1.234,56", 1234.56},
        {"1,234.56", 1234.56},
        {"2999", 2999},
    }
    for _, c := range cases {
        got, err := ParseAmount(c.in)
        require.NoError(t, err, c.in)
        require.InDelta(t, c.want, got, 0.001, c.in)
    }
    _, err := ParseAmount("")
    require.Error(t, err)
    _, err = ParseAmount("N/A")
    require.Error(t, err)
}

func TestPricesFromText(t *testing.T) {
    text := `Gold Bars pack $9.99 · Red Dead Redemption 2 $59.99 · released 2018 · 4 250 reviews · 2 999,50 ₽`
    got := PricesFromText(text, "US")
    require.Len(t, got, 3)
    require.Equal(t, Money{9.99, "USD"}, got[0])
    require.Equal(t, Money{59.99, "USD"}, got[1])
    require.Equal(t, Money{2999.50, "RUB"}, got[2])
}

func TestPricesFromText_DigitEndingTitleKeepsNextPrice(t *testing.T) {
    got := PricesFromText("Red Dead Redemption 2 $59.99 Add to Cart", "US")
    require.Equal(t, []Money{{59.99, "USD"}}, got)
}

func TestCurrencyFromText(t *testing.T) {
    require.Equal(t, "BRL", CurrencyFromText("R$ 249,90", "BR"))
    require.Equal(t, "PLN", CurrencyFromText("249,00 zł", "PL"))
    require.Equal(t, "KZT", CurrencyFromText("24 990 ₸", "KZ"))
    // No symbol: region decides.
    require.Equal(t, "ARS", CurrencyFromText("12500.00", "AR"))
    require.Equal(t, "USD", CurrencyFromText("59.99", "XX"))
}
