package store

import (
    "context"
)

// ID identifies a storefront.
type ID string

const (
    Steam       ID = "steam"
    PlayStation ID = "playstation"
    Xbox        ID = "xbox"
    Epic        ID = "epic"
    GOG         ID = "gog"
    Nintendo    ID = "nintendo"
)

// FreeCurrency is the sentinel currency for offers that cost nothing.
const FreeCurrency = "FREE"

// Candidate is a single search hit from one storefront.
type Candidate struct {
    Store      ID     `json:"store"`
    ExternalID string `json:"external_id"`
    Title      string `json:"title"`
    // Aux keys some stores need for later price lookup.
    ConceptID     string `json:"concept_id,omitempty"`
    InvariantName string `json:"invariant_name,omitempty"`
}

// Ref identifies a product for an Offers lookup.
type Ref struct {
    ExternalID    string
    ConceptID     string
    InvariantName string
}

// Offer is a fully resolved, region-specific price for one store+game.
// Base and Final are nil when unknown; Final <= Base when both are set.
// Currency == FreeCurrency implies a zero Final.
type Offer struct {
    Store    ID     `json:"store"`
    Region   string `json:"region"`
    Label    string `json:"label"`
    Base     *float64 `json:"base_price,omitempty"`
    Final    *float64 `json:"final_price,omitempty"`
    Currency string `json:"currency"`
    URL      string `json:"url"`
    // SubscriptionIncluded marks prices tied to a platform subscription
    // (PS Plus, Game Pass) rather than a plain discount.
    SubscriptionIncluded bool `json:"subscription_included,omitempty"`
    // DepositOnly marks a pre-order partial payment shown instead of the
    // full price.
    DepositOnly bool     `json:"deposit_only,omitempty"`
    Platforms   []string `json:"platforms,omitempty"`
}

// Adapter is the uniform storefront contract. Implementations never
// surface upstream failures: a broken or missing upstream reduces to an
// empty result and a warn log. Errors are reserved for invalid input and
// context cancellation.
type Adapter interface {
    Name() string
    ID() ID
    Search(ctx context.Context, query, region string, limit int) ([]Candidate, error)
    Offers(ctx context.Context, ref Ref, region string) ([]Offer, error)
}

// Free builds a zero-priced offer value.
func Free() (*float64, string) {
    z := 0.0
    return &z, FreeCurrency
}

// Ptr is a small helper for optional price fields.
func Ptr(v float64) *float64 { return &v }
