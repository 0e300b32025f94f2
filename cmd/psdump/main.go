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

    "gameprices/internal/config"
    "gameprices/internal/httpx"
    "gameprices/internal/store"
    "gameprices/internal/store/playstation"
)

// psdump sweeps one PlayStation product across every supported region and
// dumps the raw offers. Useful when a region shows a deposit or a DLC price
// instead of the full game and the selection heuristics need tuning.

type regionDump struct {
    Region string        `json:"region"`
    Offers []store.Offer `json:"offers"`
    Err    string        `json:"error,omitempty"`
}

func main() {
    var (
        productID string
        title     string
        regions   string
        cookie    string
        cfgPath   string
        out       string
    )
    flag.StringVar(&productID, "id", "", "product id (EP9000-PPSA01284_00-...) or concept id")
    flag.StringVar(&title, "title", "", "invariant title, improves the store page slug guess")
    flag.StringVar(&regions, "regions", "RU,US,TR,BR,AR,IN,UA,KZ,PL,DE", "regions CSV")
    flag.StringVar(&cookie, "cookie", os.Getenv("PS_SESSION_COOKIE"), "store session cookie for the checkout API")
    flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
    flag.StringVar(&out, "out", "", "write JSON here instead of stdout")
    flag.Parse()

    if productID == "" {
        fmt.Fprintln(os.Stderr, "usage: psdump -id EP9000-PPSA01284_00-0000000000000000 [-regions RU,TR]")
        os.Exit(2)
    }

    _ = godotenv.Load()
    logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

    cfg, err := config.Load(cfgPath)
    if err != nil {
        fmt.Fprintf(os.Stderr, "config: %v\n", err)
        os.Exit(1)
    }
    if cookie != "" { cfg.PlayStation.SessionCookie = cookie }

    a := playstation.New(playstation.Config{
        BaseURL:           cfg.PlayStation.BaseURL,
        GraphQLURL:        cfg.PlayStation.GraphQLURL,
        SessionCookie:     cfg.PlayStation.SessionCookie,
        DepositThresholds: cfg.PlayStation.DepositThresholds,
        DepositRegions:    cfg.PlayStation.DepositRegions,
        NoiseRatio:        cfg.PlayStation.NoiseRatio,
        Logger:            logger,
    }, httpx.New(time.Duration(cfg.PlayStation.HTTPTimeoutSec)*time.Second))

    ref := store.Ref{ExternalID: productID, InvariantName: title}
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
    defer cancel()

    var dumps []regionDump
    for _, region := range strings.Split(regions, ",") {
        region = strings.ToUpper(strings.TrimSpace(region))
        if region == "" { continue }
        d := regionDump{Region: region}
        offers, err := a.Offers(ctx, ref, region)
        if err != nil {
            d.Err = err.Error()
        } else {
            d.Offers = offers
        }
        logger.Info().Str("region", region).Int("offers", len(d.Offers)).Msg("swept")
        dumps = append(dumps, d)
    }

    w := os.Stdout
    if out != "" {
        f, err := os.Create(out)
        if err != nil {
            fmt.Fprintf(os.Stderr, "create %s: %v\n", out, err)
            os.Exit(1)
        }
        defer f.Close()
        w = f
    }
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    if err := enc.Encode(dumps); err != nil {
        fmt.Fprintf(os.Stderr, "encode: %v\n", err)
        os.Exit(1)
    }
}
