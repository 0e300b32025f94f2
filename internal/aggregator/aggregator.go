package aggregator

import (
    "context"
    "fmt"
    "sort"
    "strings"

    "github.com/rs/zerolog"
    "golang.org/x/sync/errgroup"

    "gameprices/internal/fx"
    "gameprices/internal/grouping"
    "gameprices/internal/store"
)

//go:generate mockgen -destination=mock_adapter_test.go -package=aggregator gameprices/internal/store Adapter

const searchLimit = 20

// Aggregator fans user searches out across storefront adapters, groups the
// hits into logical games, and builds ranked cross-store price tables.
type Aggregator struct {
    adapters  map[store.ID]store.Adapter
    converter *fx.Converter
    logger    zerolog.Logger
}

func New(adapters []store.Adapter, converter *fx.Converter, logger zerolog.Logger) *Aggregator {
    m := make(map[store.ID]store.Adapter, len(adapters))
    for _, a := range adapters { m[a.ID()] = a }
    return &Aggregator{adapters: m, converter: converter, logger: logger}
}

// SearchAndGroup runs one Search per storefront relevant to the selected
// platforms and merges the hits into ranked GameGroups. The first selected
// region doubles as the search region so every store is asked about the
// same catalog. An adapter failure costs its own results only.
func (a *Aggregator) SearchAndGroup(ctx context.Context, query string, platforms []Platform, regions []string) ([]*grouping.Group, error) {
    if strings.TrimSpace(query) == "" { return nil, fmt.Errorf("aggregator: empty query") }

    searchRegion := "US"
    if len(regions) > 0 { searchRegion = strings.ToUpper(regions[0]) }

    var stores []store.ID
    for _, id := range RelevantStores(platforms) {
        if _, ok := a.adapters[id]; ok { stores = append(stores, id) }
    }

    results := make([][]store.Candidate, len(stores))
    g, gctx := errgroup.WithContext(ctx)
    for i, id := range stores {
        i, id := i, id
        adapter := a.adapters[id]
        g.Go(func() error {
            candidates, err := adapter.Search(gctx, query, searchRegion, searchLimit)
            if err != nil {
                a.logger.Warn().Err(err).Str("store", string(id)).Str("query", query).Msg("search fan-out call failed")
                return nil
            }
            results[i] = candidates
            return nil
        })
    }
    if err := g.Wait(); err != nil { return nil, err }

    // Flatten preserving request order so grouping is deterministic.
    var all []store.Candidate
    for _, r := range results { all = append(all, r...) }
    return grouping.Rank(grouping.Merge(all), query), nil
}

// Cell is one store+region slot of the price table. Unavailable cells are
// kept so the caller can render "checked and empty" distinctly from "not
// checked".
type Cell struct {
    Region string        `json:"region"`
    Offers []store.Offer `json:"offers,omitempty"`
    // Converted is the cheapest offer's final price in the reference
    // currency, for ranking only. Nil when unavailable or unconvertible.
    Converted   *float64 `json:"converted,omitempty"`
    Unavailable bool     `json:"unavailable,omitempty"`
}

// Row is one storefront's line of the price table, cells ordered cheapest
// region first.
type Row struct {
    Store store.ID `json:"store"`
    Name  string   `json:"name"`
    Cells []Cell   `json:"cells"`
}

// Table is the final cross-store price comparison for one game group.
type Table struct {
    Title             string `json:"title"`
    ReferenceCurrency string `json:"reference_currency"`
    Rows              []Row  `json:"rows"`
}

// RankedOffers issues one Offers call per store in the group per selected
// region, all concurrently, converts results to the reference currency for
// ranking, and orders stores by their average converted price. Original
// currencies are preserved in the cells.
func (a *Aggregator) RankedOffers(ctx context.Context, group *grouping.Group, regions []string) (*Table, error) {
    if group == nil { return nil, fmt.Errorf("aggregator: nil group") }
    if len(regions) == 0 { return nil, fmt.Errorf("aggregator: no regions selected") }

    var stores []store.ID
    for _, id := range storeOrder {
        if _, inGroup := group.StoreRefs[id]; !inGroup { continue }
        if _, ok := a.adapters[id]; ok { stores = append(stores, id) }
    }

    type slot struct{ storeIdx, regionIdx int }
    cells := make([][]Cell, len(stores))
    var slots []slot
    for i := range stores {
        cells[i] = make([]Cell, len(regions))
        for j := range regions {
            slots = append(slots, slot{i, j})
        }
    }

    g, gctx := errgroup.WithContext(ctx)
    for _, s := range slots {
        s := s
        id := stores[s.storeIdx]
        adapter := a.adapters[id]
        ref := group.StoreRefs[id]
        region := strings.ToUpper(regions[s.regionIdx])
        g.Go(func() error {
            offers, err := adapter.Offers(gctx, ref, region)
            if err != nil {
                a.logger.Warn().Err(err).Str("store", string(id)).Str("region", region).Msg("offers fan-out call failed")
                offers = nil
            }
            cells[s.storeIdx][s.regionIdx] = Cell{
                Region:      region,
                Offers:      offers,
                Unavailable: len(offers) == 0,
            }
            return nil
        })
    }
    if err := g.Wait(); err != nil { return nil, err }

    a.warmRates(ctx, cells)
    for i := range cells {
        for j := range cells[i] {
            cells[i][j].Converted = a.convertCheapest(ctx, cells[i][j].Offers)
        }
    }

    table := &Table{Title: group.CanonicalTitle, ReferenceCurrency: fx.ReferenceCurrency}
    for i, id := range stores {
        row := Row{Store: id, Name: a.adapters[id].Name(), Cells: cells[i]}
        sortCells(row.Cells)
        table.Rows = append(table.Rows, row)
    }
    sortRows(table.Rows)
    return table, nil
}

// warmRates resolves every distinct currency once, concurrently, so the
// per-offer conversions below hit the converter's cache.
func (a *Aggregator) warmRates(ctx context.Context, cells [][]Cell) {
    currencies := make(map[string]struct{})
    for _, row := range cells {
        for _, c := range row {
            for _, o := range c.Offers {
                if o.Currency != fx.ReferenceCurrency && o.Currency != store.FreeCurrency {
                    currencies[o.Currency] = struct{}{}
                }
            }
        }
    }
    var g errgroup.Group
    for cur := range currencies {
        cur := cur
        g.Go(func() error {
            a.converter.Convert(ctx, 1, cur, fx.ReferenceCurrency)
            return nil
        })
    }
    g.Wait()
}

// convertCheapest returns the lowest converted final price among the
// cell's offers, nil when nothing is convertible.
func (a *Aggregator) convertCheapest(ctx context.Context, offers []store.Offer) *float64 {
    var best *float64
    for _, o := range offers {
        if o.Final == nil { continue }
        var converted *float64
        if o.Currency == store.FreeCurrency {
            converted = store.Ptr(0)
        } else {
            converted = a.converter.Convert(ctx, *o.Final, o.Currency, fx.ReferenceCurrency)
        }
        if converted == nil { continue }
        if best == nil || *converted < *best { best = converted }
    }
    return best
}

// sortCells orders a store's regions cheapest first; regions with no
// convertible price go last, keeping their relative request order.
func sortCells(cells []Cell) {
    sort.SliceStable(cells, func(i, j int) bool {
        ci, cj := cells[i].Converted, cells[j].Converted
        if ci == nil { return false }
        if cj == nil { return true }
        return *ci < *cj
    })
}

// sortRows orders stores by average converted price across their priced
// regions; stores with nothing convertible go last.
func sortRows(rows []Row) {
    avg := func(r Row) (float64, bool) {
        sum, n := 0.0, 0
        for _, c := range r.Cells {
            if c.Converted != nil {
                sum += *c.Converted
                n++
            }
        }
        if n == 0 { return 0, false }
        return sum / float64(n), true
    }
    sort.SliceStable(rows, func(i, j int) bool {
        ai, oki := avg(rows[i])
        aj, okj := avg(rows[j])
        if !oki { return false }
        if !okj { return true }
        return ai < aj
    })
}
