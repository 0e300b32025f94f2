package aggregator

import (
    "context"
    "errors"
    "fmt"

    "gameprices/internal/grouping"
)

// State is a step of the price lookup dialog.
type State int

const (
    StateIdle State = iota
    StateChoosingPlatforms
    StateChoosingRegions
    StateEnteringQuery
    StateChoosingGameGroup
    StateShowingPrices
)

func (s State) String() string {
    switch s {
    case StateIdle:
        return "idle"
    case StateChoosingPlatforms:
        return "choosing_platforms"
    case StateChoosingRegions:
        return "choosing_regions"
    case StateEnteringQuery:
        return "entering_query"
    case StateChoosingGameGroup:
        return "choosing_game_group"
    case StateShowingPrices:
        return "showing_prices"
    }
    return "unknown"
}

// ErrEmptySelection rejects an empty platform or region choice. The
// session stays where it is; the caller can retry.
var ErrEmptySelection = errors.New("nothing selected")

// ErrNoResults means the search ran fine and found nothing.
var ErrNoResults = errors.New("no games found")

// Session drives one user's lookup dialog through its states. It is not
// safe for concurrent use; each user gets their own session, and starting
// a new search simply discards the previous in-memory state.
type Session struct {
    agg *Aggregator

    state     State
    platforms []Platform
    regions   []string
    groups    []*grouping.Group
    chosen    *grouping.Group
}

func NewSession(agg *Aggregator) *Session {
    return &Session{agg: agg, state: StateIdle}
}

func (s *Session) State() State { return s.state }

// Start begins a fresh lookup, discarding any previous progress.
func (s *Session) Start() {
    *s = Session{agg: s.agg, state: StateChoosingPlatforms}
}

// Cancel aborts the dialog from any state.
func (s *Session) Cancel() {
    *s = Session{agg: s.agg, state: StateIdle}
}

// Back moves to the previous step. Results gathered by the abandoned step
// are dropped.
func (s *Session) Back() {
    switch s.state {
    case StateChoosingRegions:
        s.state = StateChoosingPlatforms
    case StateEnteringQuery:
        s.state = StateChoosingRegions
    case StateChoosingGameGroup:
        s.groups = nil
        s.state = StateEnteringQuery
    case StateShowingPrices:
        s.chosen = nil
        s.state = StateChoosingGameGroup
    default:
        s.state = StateIdle
    }
}

func (s *Session) ChoosePlatforms(platforms []Platform) error {
    if err := s.expect(StateChoosingPlatforms); err != nil { return err }
    if len(platforms) == 0 { return ErrEmptySelection }
    s.platforms = platforms
    s.state = StateChoosingRegions
    return nil
}

func (s *Session) ChooseRegions(regions []string) error {
    if err := s.expect(StateChoosingRegions); err != nil { return err }
    if len(regions) == 0 { return ErrEmptySelection }
    s.regions = regions
    s.state = StateEnteringQuery
    return nil
}

// SubmitQuery runs the cross-store search. ErrNoResults leaves the
// session in EnteringQuery so the user can rephrase.
func (s *Session) SubmitQuery(ctx context.Context, query string) ([]*grouping.Group, error) {
    if err := s.expect(StateEnteringQuery); err != nil { return nil, err }
    groups, err := s.agg.SearchAndGroup(ctx, query, s.platforms, s.regions)
    if err != nil { return nil, err }
    if len(groups) == 0 { return nil, ErrNoResults }
    s.groups = groups
    s.state = StateChoosingGameGroup
    return groups, nil
}

// ChooseGroup resolves the price table for the picked game.
func (s *Session) ChooseGroup(ctx context.Context, index int) (*Table, error) {
    if err := s.expect(StateChoosingGameGroup); err != nil { return nil, err }
    if index < 0 || index >= len(s.groups) {
        return nil, fmt.Errorf("session: group index %d out of range", index)
    }
    s.chosen = s.groups[index]
    table, err := s.agg.RankedOffers(ctx, s.chosen, s.regions)
    if err != nil { return nil, err }
    s.state = StateShowingPrices
    return table, nil
}

func (s *Session) expect(want State) error {
    if s.state != want {
        return fmt.Errorf("session: in state %s, expected %s", s.state, want)
    }
    return nil
}
