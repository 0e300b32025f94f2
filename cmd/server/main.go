package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "io"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "sync"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog"

    "gameprices/internal/aggregator"
    "gameprices/internal/config"
    "gameprices/internal/fx"
    "gameprices/internal/grouping"
    "gameprices/internal/httpx"
    "gameprices/internal/store"
    "gameprices/internal/store/cache"
    "gameprices/internal/store/epic"
    "gameprices/internal/store/gog"
    "gameprices/internal/store/nintendo"
    "gameprices/internal/store/playstation"
    "gameprices/internal/store/ratelimit"
    "gameprices/internal/store/steam"
    "gameprices/internal/store/xbox"
)

func main() {
    _ = godotenv.Load()
    logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

    cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
    if err != nil { logger.Fatal().Err(err).Msg("config") }

    if cfg.PlayStation.Enabled && cfg.PlayStation.SessionCookie == "" {
        logger.Warn().Msg("playstation enabled without PS_SESSION_COOKIE; GraphQL price strategy disabled")
    }

    converter := fx.New(fx.Config{
        Endpoint: cfg.FX.Endpoint,
        Timeout:  time.Duration(cfg.FX.TimeoutSec) * time.Second,
        RateTTL:  time.Duration(cfg.FX.RateTTLSeconds) * time.Second,
        Logger:   logger.With().Str("component", "fx").Logger(),
    }, httpx.New(time.Duration(cfg.FX.TimeoutSec)*time.Second))

    agg := aggregator.New(buildAdapters(cfg, logger), converter, logger.With().Str("component", "aggregator").Logger())

    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        handleSearch(w, r, agg)
    })
    mux.HandleFunc("/api/offers", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        handleOffers(w, r, agg)
    })

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+5) * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        logger.Info().Str("port", cfg.Server.Port).Msg("server listening")
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            logger.Fatal().Err(err).Msg("server")
        }
    }()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

// buildAdapters wires one adapter per enabled storefront, each wrapped in
// its rate limiter and its result caches.
func buildAdapters(cfg config.Config, logger zerolog.Logger) []store.Adapter {
    wrap := func(a store.Adapter, c config.StoreCommon) store.Adapter {
        if c.MaxRequestsPerMinute > 0 {
            a = ratelimit.New(a, c.MaxRequestsPerMinute, c.Burst)
        }
        return &cache.Adapter{
            A:         a,
            SearchTTL: time.Duration(c.SearchCacheTTLSeconds) * time.Second,
            OffersTTL: time.Duration(c.OffersCacheTTLSeconds) * time.Second,
            MaxItems:  c.CacheMaxItems,
        }
    }

    var adapters []store.Adapter
    if cfg.Steam.Enabled {
        a := steam.New(steam.Config{
            SearchURL:  cfg.Steam.SearchURL,
            DetailsURL: cfg.Steam.DetailsURL,
            StoreURL:   cfg.Steam.StoreURL,
            Logger:     logger.With().Str("store", "steam").Logger(),
        }, httpx.New(time.Duration(cfg.Steam.HTTPTimeoutSec)*time.Second))
        adapters = append(adapters, wrap(a, cfg.Steam.StoreCommon))
    }
    if cfg.PlayStation.Enabled {
        a := playstation.New(playstation.Config{
            BaseURL:           cfg.PlayStation.BaseURL,
            GraphQLURL:        cfg.PlayStation.GraphQLURL,
            SessionCookie:     cfg.PlayStation.SessionCookie,
            DepositThresholds: cfg.PlayStation.DepositThresholds,
            DepositRegions:    cfg.PlayStation.DepositRegions,
            NoiseRatio:        cfg.PlayStation.NoiseRatio,
            Logger:            logger.With().Str("store", "playstation").Logger(),
        }, httpx.New(time.Duration(cfg.PlayStation.HTTPTimeoutSec)*time.Second))
        adapters = append(adapters, wrap(a, cfg.PlayStation.StoreCommon))
    }
    if cfg.Xbox.Enabled {
        a := xbox.New(xbox.Config{
            BaseURL: cfg.Xbox.BaseURL,
            Logger:  logger.With().Str("store", "xbox").Logger(),
        }, httpx.New(time.Duration(cfg.Xbox.HTTPTimeoutSec)*time.Second))
        adapters = append(adapters, wrap(a, cfg.Xbox.StoreCommon))
    }
    if cfg.Epic.Enabled {
        a := epic.New(epic.Config{
            GraphQLURL: cfg.Epic.GraphQLURL,
            StoreURL:   cfg.Epic.StoreURL,
            Logger:     logger.With().Str("store", "epic").Logger(),
        }, httpx.New(time.Duration(cfg.Epic.HTTPTimeoutSec)*time.Second))
        adapters = append(adapters, wrap(a, cfg.Epic.StoreCommon))
    }
    if cfg.GOG.Enabled {
        a := gog.New(gog.Config{
            SearchURL: cfg.GOG.SearchURL,
            GameURL:   cfg.GOG.GameURL,
            Logger:    logger.With().Str("store", "gog").Logger(),
        }, httpx.New(time.Duration(cfg.GOG.HTTPTimeoutSec)*time.Second))
        adapters = append(adapters, wrap(a, cfg.GOG.StoreCommon))
    }
    if cfg.Nintendo.Enabled {
        a := nintendo.New(nintendo.Config{
            SearchURL:         cfg.Nintendo.SearchURL,
            FallbackSearchURL: cfg.Nintendo.FallbackSearchURL,
            PriceURL:          cfg.Nintendo.PriceURL,
            Logger:            logger.With().Str("store", "nintendo").Logger(),
        }, httpx.New(time.Duration(cfg.Nintendo.HTTPTimeoutSec)*time.Second))
        adapters = append(adapters, wrap(a, cfg.Nintendo.StoreCommon))
    }
    return adapters
}

type searchResponse struct {
    Groups []groupJSON `json:"groups"`
}

type groupJSON struct {
    Title   string              `json:"title"`
    Markers []string            `json:"markers,omitempty"`
    Refs    map[store.ID]refJSON `json:"refs"`
}

type refJSON struct {
    ExternalID    string `json:"external_id"`
    ConceptID     string `json:"concept_id,omitempty"`
    InvariantName string `json:"invariant_name,omitempty"`
}

func handleSearch(w http.ResponseWriter, r *http.Request, agg *aggregator.Aggregator) {
    q := r.URL.Query()
    query := strings.TrimSpace(q.Get("query"))
    if query == "" {
        http.Error(w, "missing query param", http.StatusBadRequest)
        return
    }
    var platforms []aggregator.Platform
    for _, p := range splitCSV(q.Get("platforms")) {
        platforms = append(platforms, aggregator.Platform(strings.ToLower(p)))
    }
    if len(platforms) == 0 {
        http.Error(w, "missing platforms param", http.StatusBadRequest)
        return
    }
    regions := splitCSV(q.Get("regions"))
    if len(regions) == 0 {
        http.Error(w, "missing regions param", http.StatusBadRequest)
        return
    }

    ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
    defer cancel()
    groups, err := agg.SearchAndGroup(ctx, query, platforms, regions)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadGateway)
        return
    }

    resp := searchResponse{Groups: []groupJSON{}}
    for _, g := range groups {
        gj := groupJSON{Title: g.CanonicalTitle, Markers: g.Markers, Refs: make(map[store.ID]refJSON)}
        for id, ref := range g.StoreRefs {
            gj.Refs[id] = refJSON{ExternalID: ref.ExternalID, ConceptID: ref.ConceptID, InvariantName: ref.InvariantName}
        }
        resp.Groups = append(resp.Groups, gj)
    }
    writeJSON(w, resp)
}

type offersRequest struct {
    Title   string               `json:"title"`
    Refs    map[store.ID]refJSON `json:"refs"`
    Regions []string             `json:"regions"`
}

func handleOffers(w http.ResponseWriter, r *http.Request, agg *aggregator.Aggregator) {
    var b offersRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&b); err != nil {
        http.Error(w, "invalid JSON body", http.StatusBadRequest)
        return
    }
    if len(b.Refs) == 0 {
        http.Error(w, "refs cannot be empty", http.StatusBadRequest)
        return
    }
    if len(b.Regions) == 0 {
        http.Error(w, "regions cannot be empty", http.StatusBadRequest)
        return
    }

    group := &grouping.Group{CanonicalTitle: b.Title, StoreRefs: make(map[store.ID]store.Ref, len(b.Refs))}
    for id, ref := range b.Refs {
        group.StoreRefs[id] = store.Ref{
            ExternalID:    ref.ExternalID,
            ConceptID:     ref.ConceptID,
            InvariantName: ref.InvariantName,
        }
    }

    ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
    defer cancel()
    table, err := agg.RankedOffers(ctx, group, b.Regions)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }
    writeJSON(w, table)
}

func writeJSON(w http.ResponseWriter, v any) {
    w.WriteHeader(http.StatusOK)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Method == http.MethodPost && r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                http.Error(w, "internal server error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
