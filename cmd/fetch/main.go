package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog"

    "gameprices/internal/aggregator"
    "gameprices/internal/config"
    "gameprices/internal/fx"
    "gameprices/internal/httpx"
    "gameprices/internal/store"
    "gameprices/internal/store/epic"
    "gameprices/internal/store/gog"
    "gameprices/internal/store/nintendo"
    "gameprices/internal/store/playstation"
    "gameprices/internal/store/steam"
    "gameprices/internal/store/xbox"
)

// fetch is a one-shot CLI: search every relevant store for a game, pick a
// group, and print the ranked cross-store price table.
func main() {
    var (
        query        string
        platformsCSV string
        regionsCSV   string
        index        int
        listOnly     bool
        asJSON       bool
        cfgPath      string
        verbose      bool
    )
    flag.StringVar(&query, "query", "", "game title to search for")
    flag.StringVar(&platformsCSV, "platforms", "pc", "platforms CSV (pc,xbox_one,xbox_series,ps4,ps5,switch)")
    flag.StringVar(&regionsCSV, "regions", "RU,US", "regions CSV")
    flag.IntVar(&index, "index", 0, "which game group to price")
    flag.BoolVar(&listOnly, "list", false, "only list the matched game groups")
    flag.BoolVar(&asJSON, "json", false, "print the price table as JSON")
    flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
    flag.BoolVar(&verbose, "v", false, "verbose adapter logging")
    flag.Parse()

    if strings.TrimSpace(query) == "" {
        fmt.Fprintln(os.Stderr, "usage: fetch -query \"hades\" [-platforms pc,switch] [-regions RU,US]")
        os.Exit(2)
    }

    _ = godotenv.Load()
    logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
    if !verbose { logger = zerolog.Nop() }

    cfg, err := config.Load(cfgPath)
    if err != nil {
        fmt.Fprintf(os.Stderr, "config: %v\n", err)
        os.Exit(1)
    }

    converter := fx.New(fx.Config{
        Endpoint: cfg.FX.Endpoint,
        Timeout:  time.Duration(cfg.FX.TimeoutSec) * time.Second,
        RateTTL:  time.Duration(cfg.FX.RateTTLSeconds) * time.Second,
        Logger:   logger,
    }, httpx.New(time.Duration(cfg.FX.TimeoutSec)*time.Second))

    agg := aggregator.New(buildAdapters(cfg, logger), converter, logger)

    var platforms []aggregator.Platform
    for _, p := range strings.Split(platformsCSV, ",") {
        if p = strings.TrimSpace(p); p != "" { platforms = append(platforms, aggregator.Platform(strings.ToLower(p))) }
    }
    var regions []string
    for _, r := range strings.Split(regionsCSV, ",") {
        if r = strings.TrimSpace(r); r != "" { regions = append(regions, strings.ToUpper(r)) }
    }

    ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
    defer cancel()

    groups, err := agg.SearchAndGroup(ctx, query, platforms, regions)
    if err != nil {
        fmt.Fprintf(os.Stderr, "search: %v\n", err)
        os.Exit(1)
    }
    if len(groups) == 0 {
        fmt.Println("nothing found")
        return
    }

    if listOnly {
        for i, g := range groups {
            var stores []string
            for id := range g.StoreRefs { stores = append(stores, string(id)) }
            fmt.Printf("%2d  %-50s [%s]\n", i, g.CanonicalTitle, strings.Join(stores, ", "))
        }
        return
    }

    if index < 0 || index >= len(groups) {
        fmt.Fprintf(os.Stderr, "index %d out of range (found %d groups)\n", index, len(groups))
        os.Exit(1)
    }
    table, err := agg.RankedOffers(ctx, groups[index], regions)
    if err != nil {
        fmt.Fprintf(os.Stderr, "offers: %v\n", err)
        os.Exit(1)
    }

    if asJSON {
        enc := json.NewEncoder(os.Stdout)
        enc.SetIndent("", "  ")
        _ = enc.Encode(table)
        return
    }
    printTable(table)
}

func printTable(table *aggregator.Table) {
    fmt.Printf("%s\n\n", table.Title)
    for _, row := range table.Rows {
        fmt.Printf("%s\n", row.Name)
        for _, cell := range row.Cells {
            if cell.Unavailable {
                fmt.Printf("  %-4s unavailable\n", cell.Region)
                continue
            }
            for _, o := range cell.Offers {
                fmt.Printf("  %-4s %s\n", cell.Region, formatOffer(o, cell.Converted, table.ReferenceCurrency))
            }
        }
    }
}

func formatOffer(o store.Offer, converted *float64, refCurrency string) string {
    var b strings.Builder
    if o.Currency == store.FreeCurrency {
        b.WriteString("free")
    } else if o.Final != nil {
        fmt.Fprintf(&b, "%.2f %s", *o.Final, o.Currency)
        if o.Base != nil && *o.Base > *o.Final { fmt.Fprintf(&b, " (was %.2f)", *o.Base) }
        if converted != nil && o.Currency != refCurrency {
            fmt.Fprintf(&b, " ~ %.2f %s", *converted, refCurrency)
        }
    }
    if o.SubscriptionIncluded { b.WriteString(" [subscription]") }
    if o.DepositOnly { b.WriteString(" [deposit]") }
    return b.String()
}

// buildAdapters wires the raw adapters. A one-shot run gets no rate
// limiters or result caches; every lookup happens exactly once anyway.
func buildAdapters(cfg config.Config, logger zerolog.Logger) []store.Adapter {
    var adapters []store.Adapter
    if cfg.Steam.Enabled {
        adapters = append(adapters, steam.New(steam.Config{
            SearchURL:  cfg.Steam.SearchURL,
            DetailsURL: cfg.Steam.DetailsURL,
            StoreURL:   cfg.Steam.StoreURL,
            Logger:     logger,
        }, httpx.New(time.Duration(cfg.Steam.HTTPTimeoutSec)*time.Second)))
    }
    if cfg.PlayStation.Enabled {
        adapters = append(adapters, playstation.New(playstation.Config{
            BaseURL:           cfg.PlayStation.BaseURL,
            GraphQLURL:        cfg.PlayStation.GraphQLURL,
            SessionCookie:     cfg.PlayStation.SessionCookie,
            DepositThresholds: cfg.PlayStation.DepositThresholds,
            DepositRegions:    cfg.PlayStation.DepositRegions,
            NoiseRatio:        cfg.PlayStation.NoiseRatio,
            Logger:            logger,
        }, httpx.New(time.Duration(cfg.PlayStation.HTTPTimeoutSec)*time.Second)))
    }
    if cfg.Xbox.Enabled {
        adapters = append(adapters, xbox.New(xbox.Config{
            BaseURL: cfg.Xbox.BaseURL,
            Logger:  logger,
        }, httpx.New(time.Duration(cfg.Xbox.HTTPTimeoutSec)*time.Second)))
    }
    if cfg.Epic.Enabled {
        adapters = append(adapters, epic.New(epic.Config{
            GraphQLURL: cfg.Epic.GraphQLURL,
            StoreURL:   cfg.Epic.StoreURL,
            Logger:     logger,
        }, httpx.New(time.Duration(cfg.Epic.HTTPTimeoutSec)*time.Second)))
    }
    if cfg.GOG.Enabled {
        adapters = append(adapters, gog.New(gog.Config{
            SearchURL: cfg.GOG.SearchURL,
            GameURL:   cfg.GOG.GameURL,
            Logger:    logger,
        }, httpx.New(time.Duration(cfg.GOG.HTTPTimeoutSec)*time.Second)))
    }
    if cfg.Nintendo.Enabled {
        adapters = append(adapters, nintendo.New(nintendo.Config{
            SearchURL:         cfg.Nintendo.SearchURL,
            FallbackSearchURL: cfg.Nintendo.FallbackSearchURL,
            PriceURL:          cfg.Nintendo.PriceURL,
            Logger:            logger,
        }, httpx.New(time.Duration(cfg.Nintendo.HTTPTimeoutSec)*time.Second)))
    }
    return adapters
}
