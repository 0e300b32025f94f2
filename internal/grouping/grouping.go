package grouping

import (
    "sort"
    "strings"
    "unicode"

    "golang.org/x/text/runes"
    "golang.org/x/text/transform"
    "golang.org/x/text/unicode/norm"

    "gameprices/internal/store"
)

// Edition marker vocabulary. Titles with different marker sets never merge,
// so "Cyberpunk 2077" and "Cyberpunk 2077 Deluxe Edition" stay separate.
var markerVocabulary = map[string]struct{}{
    "dlc": {}, "bundle": {}, "deluxe": {}, "premium": {}, "ultimate": {},
    "gold": {}, "complete": {}, "soundtrack": {}, "edition": {}, "collection": {},
    "season": {}, "pass": {}, "remaster": {}, "remastered": {}, "definitive": {},
    "vr": {}, "dx": {}, "redux": {},
}

// Group is a logical game merging same-title, same-edition candidates from
// several storefronts.
type Group struct {
    CanonicalTitle string              `json:"title"`
    StoreRefs      map[store.ID]store.Ref `json:"-"`
    Markers        []string            `json:"markers,omitempty"`

    baseKey   string
    markerKey string
}

// Refs returns the per-store external IDs for JSON output.
func (g *Group) Refs() map[store.ID]string {
    out := make(map[store.ID]string, len(g.StoreRefs))
    for id, ref := range g.StoreRefs { out[id] = ref.ExternalID }
    return out
}

var glyphStripper = transform.Chain(
    norm.NFD,
    runes.Remove(runes.In(unicode.Mn)),
    runes.Remove(runes.In(unicode.So)), // ™ ® and friends
    norm.NFC,
)

// normalizeTitle lowercases and strips decorative glyphs before tokenizing.
func normalizeTitle(title string) string {
    s, _, err := transform.String(glyphStripper, title)
    if err != nil { s = title }
    return strings.ToLower(s)
}

func tokenize(title string) []string {
    return strings.FieldsFunc(normalizeTitle(title), func(r rune) bool {
        return unicode.IsSpace(r) || r == '-' || r == ':'
    })
}

// splitTokens partitions title tokens into base tokens and edition markers.
func splitTokens(title string) (base, markers map[string]struct{}) {
    base = make(map[string]struct{})
    markers = make(map[string]struct{})
    for _, tok := range tokenize(title) {
        if _, ok := markerVocabulary[tok]; ok {
            markers[tok] = struct{}{}
        } else {
            base[tok] = struct{}{}
        }
    }
    return base, markers
}

func setKey(set map[string]struct{}) string {
    toks := make([]string, 0, len(set))
    for t := range set { toks = append(toks, t) }
    sort.Strings(toks)
    return strings.Join(toks, "\x1f")
}

// Merge folds candidates from all storefronts into groups. Two candidates
// share a group iff their base token sets and their marker token sets are
// both equal. The longest observed title becomes canonical and the
// first-seen external ID per store wins.
func Merge(candidates []store.Candidate) []*Group {
    byKey := make(map[[2]string]*Group)
    var order []*Group

    for _, c := range candidates {
        base, markers := splitTokens(c.Title)
        if len(base) == 0 && len(markers) == 0 { continue }
        key := [2]string{setKey(base), setKey(markers)}

        g, ok := byKey[key]
        if !ok {
            g = &Group{
                CanonicalTitle: c.Title,
                StoreRefs:      make(map[store.ID]store.Ref),
                baseKey:        key[0],
                markerKey:      key[1],
            }
            for m := range markers { g.Markers = append(g.Markers, m) }
            sort.Strings(g.Markers)
            byKey[key] = g
            order = append(order, g)
        }
        if len(c.Title) > len(g.CanonicalTitle) { g.CanonicalTitle = c.Title }
        if _, seen := g.StoreRefs[c.Store]; !seen {
            g.StoreRefs[c.Store] = store.Ref{
                ExternalID:    c.ExternalID,
                ConceptID:     c.ConceptID,
                InvariantName: c.InvariantName,
            }
        }
    }
    return order
}

// Rank orders groups by relevance to the original query: exact normalized
// title match, then prefix, then substring, then the rest; shorter titles
// first within a tier.
func Rank(groups []*Group, query string) []*Group {
    q := normalizeTitle(strings.TrimSpace(query))
    tier := func(g *Group) int {
        title := normalizeTitle(g.CanonicalTitle)
        switch {
        case title == q:
            return 0
        case strings.HasPrefix(title, q):
            return 1
        case strings.Contains(title, q):
            return 2
        default:
            return 3
        }
    }
    out := make([]*Group, len(groups))
    copy(out, groups)
    sort.SliceStable(out, func(i, j int) bool {
        ti, tj := tier(out[i]), tier(out[j])
        if ti != tj { return ti < tj }
        return len(out[i].CanonicalTitle) < len(out[j].CanonicalTitle)
    })
    return out
}
