package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "strings"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type FX struct {
    Endpoint       string `json:"endpoint"`
    TimeoutSec     int    `json:"timeout_sec"`
    RateTTLSeconds int    `json:"rate_ttl_sec"`
}

// StoreCommon is the per-storefront knob set shared by every adapter:
// upstream timeout, rate limiting and the two result caches.
type StoreCommon struct {
    Enabled               bool `json:"enabled"`
    HTTPTimeoutSec        int  `json:"http_timeout_sec"`
    MaxRequestsPerMinute  int  `json:"max_requests_per_minute"`
    Burst                 int  `json:"burst"`
    SearchCacheTTLSeconds int  `json:"search_cache_ttl_sec"`
    OffersCacheTTLSeconds int  `json:"offers_cache_ttl_sec"`
    CacheMaxItems         int  `json:"cache_max_items"`
}

type Steam struct {
    StoreCommon
    SearchURL  string `json:"search_url"`
    DetailsURL string `json:"details_url"`
    StoreURL   string `json:"store_url"`
}

type PlayStation struct {
    StoreCommon
    BaseURL           string             `json:"base_url"`
    GraphQLURL        string             `json:"graphql_url"`
    SessionCookie     string             `json:"session_cookie"`
    DepositThresholds map[string]float64 `json:"deposit_thresholds"`
    DepositRegions    []string           `json:"deposit_regions"`
    NoiseRatio        float64            `json:"noise_ratio"`
}

type Xbox struct {
    StoreCommon
    BaseURL string `json:"base_url"`
}

type Epic struct {
    StoreCommon
    GraphQLURL string `json:"graphql_url"`
    StoreURL   string `json:"store_url"`
}

type GOG struct {
    StoreCommon
    SearchURL string `json:"search_url"`
    GameURL   string `json:"game_url"`
}

type Nintendo struct {
    StoreCommon
    SearchURL         string `json:"search_url"`
    FallbackSearchURL string `json:"fallback_search_url"`
    PriceURL          string `json:"price_url"`
}

type Config struct {
    Server      Server      `json:"server"`
    FX          FX          `json:"fx"`
    Steam       Steam       `json:"steam"`
    PlayStation PlayStation `json:"playstation"`
    Xbox        Xbox        `json:"xbox"`
    Epic        Epic        `json:"epic"`
    GOG         GOG         `json:"gog"`
    Nintendo    Nintendo    `json:"nintendo"`
}

func defaultStore(timeoutSec int) StoreCommon {
    return StoreCommon{
        Enabled:               true,
        HTTPTimeoutSec:        timeoutSec,
        MaxRequestsPerMinute:  60,
        Burst:                 5,
        SearchCacheTTLSeconds: 12 * 60 * 60,
        OffersCacheTTLSeconds: 30 * 60,
        CacheMaxItems:         4096,
    }
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 60},
        FX:     FX{TimeoutSec: 8, RateTTLSeconds: 12 * 60 * 60},
        Steam:  Steam{StoreCommon: defaultStore(10)},
        PlayStation: PlayStation{
            StoreCommon: defaultStore(15),
            // Empirically tuned; see the adapter for how these apply.
            DepositThresholds: map[string]float64{"ARS": 20000, "KZT": 5000, "USD": 10},
            DepositRegions:    []string{"AR", "KZ"},
            NoiseRatio:        1.8,
        },
        Xbox:     Xbox{StoreCommon: defaultStore(15)},
        Epic:     Epic{StoreCommon: defaultStore(20)},
        GOG:      GOG{StoreCommon: defaultStore(10)},
        Nintendo: Nintendo{StoreCommon: defaultStore(10)},
    }
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("FX_ENDPOINT"); v != "" { cfg.FX.Endpoint = v }
    if v := os.Getenv("FX_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.FX.TimeoutSec = x }
    }
    if v := os.Getenv("FX_RATE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.FX.RateTTLSeconds = x }
    }

    // The session cookie is the only real secret; everything else is
    // tunable in the JSON file.
    if v := os.Getenv("PS_SESSION_COOKIE"); v != "" { cfg.PlayStation.SessionCookie = v }
    if v := os.Getenv("PS_NOISE_RATIO"); v != "" {
        var x float64; fmt.Sscanf(v, "%f", &x); if x > 0 { cfg.PlayStation.NoiseRatio = x }
    }
    if v := os.Getenv("PS_DEPOSIT_REGIONS"); v != "" { cfg.PlayStation.DepositRegions = splitCSV(v) }

    applyStoreEnv("STEAM", &cfg.Steam.StoreCommon)
    applyStoreEnv("PS", &cfg.PlayStation.StoreCommon)
    applyStoreEnv("XBOX", &cfg.Xbox.StoreCommon)
    applyStoreEnv("EPIC", &cfg.Epic.StoreCommon)
    applyStoreEnv("GOG", &cfg.GOG.StoreCommon)
    applyStoreEnv("NINTENDO", &cfg.Nintendo.StoreCommon)
}

func applyStoreEnv(prefix string, s *StoreCommon) {
    if v := os.Getenv(prefix + "_ENABLED"); v != "" {
        switch strings.ToLower(v) {
        case "1", "true", "yes", "y": s.Enabled = true
        case "0", "false", "no", "n": s.Enabled = false
        }
    }
    if v := os.Getenv(prefix + "_HTTP_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { s.HTTPTimeoutSec = x }
    }
    if v := os.Getenv(prefix + "_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { s.MaxRequestsPerMinute = x }
    }
    if v := os.Getenv(prefix + "_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { s.Burst = x }
    }
    if v := os.Getenv(prefix + "_SEARCH_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { s.SearchCacheTTLSeconds = x }
    }
    if v := os.Getenv(prefix + "_OFFERS_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { s.OffersCacheTTLSeconds = x }
    }
    if v := os.Getenv(prefix + "_CACHE_MAX_ITEMS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { s.CacheMaxItems = x }
    }
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}
