package scrape

import (
    "encoding/json"
    "strings"

    "github.com/PuerkitoBio/goquery"
)

// NextData extracts the JSON payload of the <script id="__NEXT_DATA__"> tag
// that Next.js pages (PlayStation Store among them) embed server-side.
// Returns nil when the tag is missing or its body is not valid JSON.
func NextData(html string) []byte {
    doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
    if err != nil { return nil }
    text := doc.Find(`script#__NEXT_DATA__`).First().Text()
    if text == "" { return nil }
    raw := []byte(text)
    if !json.Valid(raw) { return nil }
    return raw
}
