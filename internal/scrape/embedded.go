package scrape

import (
    "encoding/json"
    "strings"
)

// EmbeddedJSON locates `"key":` inside html and slices out the JSON object
// that follows by balancing braces. The object's byte boundaries are not
// otherwise delimited on the pages we scrape, so this is the only reliable
// way to cut it out. Brace counting is string- and escape-aware: braces
// inside JSON string literals must not move the depth counter.
//
// Returns nil when the key is absent or the object never closes. The result
// is validated with json.Valid so callers can unmarshal without a second
// failure path.
func EmbeddedJSON(html, key string) []byte {
    marker := `"` + key + `":`
    start := strings.Index(html, marker)
    if start < 0 { return nil }

    open := strings.IndexByte(html[start:], '{')
    if open < 0 { return nil }
    open += start

    depth := 0
    inString := false
    escaped := false
    for i := open; i < len(html); i++ {
        ch := html[i]
        if inString {
            switch {
            case escaped:
                escaped = false
            case ch == '\\':
                escaped = true
            case ch == '"':
                inString = false
            }
            continue
        }
        switch ch {
        case '"':
            inString = true
        case '{':
            depth++
        case '}':
            depth--
            if depth == 0 {
                raw := []byte(html[open : i+1])
                if !json.Valid(raw) { return nil }
                return raw
            }
        }
    }
    return nil
}
