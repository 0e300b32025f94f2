package aggregator

import (
	"context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/go-resty/resty/v2"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/require"
    "go.uber.org/mock/gomock"

    "gameprices/internal/fx"
    "gameprices/internal/grouping"
    "gameprices/internal/store"
)

func mockStore(ctrl *gomock.Controller, id store.ID, name string) *MockAdapter {
    m := NewMockAdapter(ctrl)
    m.EXPECT().ID().Return(id).AnyTimes()
    m.EXPECT().Name().Return(name).AnyTimes()
    return m
}

// newConverter returns a converter whose live-rate source always fails, so
// only the identity path and the static fallback table apply.
func newConverter(t *testing.T) *fx.Converter {
    t.Helper()
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "down", http.StatusInternalServerError)
    }))
    t.Cleanup(srv.Close)
    return fx.New(fx.Config{Endpoint: srv.URL}, resty.New())
}

func newAggregator(t *testing.T, adapters ...store.Adapter) *Aggregator {
    t.Helper()
    return New(adapters, newConverter(t), zerolog.Nop())
}

func TestSearchAndGroup_MergesAcrossStores(t *testing.T) {
    ctrl := gomock.NewController(t)
    steam := mockStore(ctrl, store.Steam, "Steam")
    epic := mockStore(ctrl, store.Epic, "Epic Games")

    steam.EXPECT().Search(gomock.Any(), "hades", "RU", searchLimit).
        Return([]store.Candidate{{Store: store.Steam, ExternalID: "1145360", Title: "Hades"}}, nil)
    epic.EXPECT().Search(gomock.Any(), "hades", "RU", searchLimit).
        Return([]store.Candidate{
            {Store: store.Epic, ExternalID: "ns/hades", Title: "Hades"},
            {Store: store.Epic, ExternalID: "ns/hades-ii", Title: "Hades II"},
        }, nil)

    agg := newAggregator(t, steam, epic)
    groups, err := agg.SearchAndGroup(context.Background(), "hades", []Platform{PlatformPC}, []string{"RU", "US"})
    require.NoError(t, err)
    require.Len(t, groups, 2)
    require.Equal(t, "Hades", groups[0].CanonicalTitle)
    require.Equal(t, map[store.ID]string{store.Steam: "1145360", store.Epic: "ns/hades"}, groups[0].Refs())
    require.Equal(t, "Hades II", groups[1].CanonicalTitle)
}

func TestSearchAndGroup_OnlyRelevantStores(t *testing.T) {
    ctrl := gomock.NewController(t)
    steam := mockStore(ctrl, store.Steam, "Steam")
    nintendo := mockStore(ctrl, store.Nintendo, "Nintendo eShop")

    // switch-only selection must not touch the Steam adapter
    nintendo.EXPECT().Search(gomock.Any(), "mario", "US", searchLimit).
        Return([]store.Candidate{{Store: store.Nintendo, ExternalID: "70010000001130", Title: "Super Mario Odyssey"}}, nil)

    agg := newAggregator(t, steam, nintendo)
    groups, err := agg.SearchAndGroup(context.Background(), "mario", []Platform{PlatformSwitch}, []string{"US"})
    require.NoError(t, err)
    require.Len(t, groups, 1)
}

func TestSearchAndGroup_AdapterErrorIsIsolated(t *testing.T) {
    ctrl := gomock.NewController(t)
    steam := mockStore(ctrl, store.Steam, "Steam")
    epic := mockStore(ctrl, store.Epic, "Epic Games")

    steam.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
        Return(nil, errors.New("boom"))
    epic.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
        Return([]store.Candidate{{Store: store.Epic, ExternalID: "ns/hades", Title: "Hades"}}, nil)

    agg := newAggregator(t, steam, epic)
    groups, err := agg.SearchAndGroup(context.Background(), "hades", []Platform{PlatformPC}, []string{"RU"})
    require.NoError(t, err)
    require.Len(t, groups, 1)
    require.Equal(t, "Hades", groups[0].CanonicalTitle)
}

func TestSearchAndGroup_EmptyQuery(t *testing.T) {
    agg := newAggregator(t)
    _, err := agg.SearchAndGroup(context.Background(), "  ", []Platform{PlatformPC}, []string{"RU"})
    require.Error(t, err)
}

func groupWith(refs map[store.ID]store.Ref) *grouping.Group {
    g := grouping.Merge([]store.Candidate{{Store: store.Steam, ExternalID: "seed", Title: "Seed"}})[0]
    g.CanonicalTitle = "Hades"
    for id := range g.StoreRefs { delete(g.StoreRefs, id) }
    for id, ref := range refs { g.StoreRefs[id] = ref }
    return g
}

func TestRankedOffers_FanOutAndFailureIsolation(t *testing.T) {
    ctrl := gomock.NewController(t)
    steam := mockStore(ctrl, store.Steam, "Steam")
    epic := mockStore(ctrl, store.Epic, "Epic Games")

    offer := func(id store.ID, region string, price float64) []store.Offer {
        return []store.Offer{{Store: id, Region: region, Final: store.Ptr(price), Currency: "RUB"}}
    }
    steam.EXPECT().Offers(gomock.Any(), gomock.Any(), "RU").Return(offer(store.Steam, "RU", 1000), nil)
    steam.EXPECT().Offers(gomock.Any(), gomock.Any(), "US").Return(offer(store.Steam, "US", 2000), nil)
    epic.EXPECT().Offers(gomock.Any(), gomock.Any(), "RU").Return(nil, errors.New("blocked"))
    epic.EXPECT().Offers(gomock.Any(), gomock.Any(), "US").Return(offer(store.Epic, "US", 4000), nil)

    agg := newAggregator(t, steam, epic)
    group := groupWith(map[store.ID]store.Ref{
        store.Steam: {ExternalID: "1145360"},
        store.Epic:  {ExternalID: "ns/hades"},
    })

    table, err := agg.RankedOffers(context.Background(), group, []string{"RU", "US"})
    require.NoError(t, err)
    require.Len(t, table.Rows, 2)

    // Steam averages 1500, Epic 4000: Steam ranks first.
    require.Equal(t, store.Steam, table.Rows[0].Store)
    require.Equal(t, []Cell{
        {Region: "RU", Offers: offer(store.Steam, "RU", 1000), Converted: store.Ptr(1000)},
        {Region: "US", Offers: offer(store.Steam, "US", 2000), Converted: store.Ptr(2000)},
    }, table.Rows[0].Cells)

    // The failed Epic/RU call renders as an explicit unavailable cell and
    // sorts after the priced region.
    epicCells := table.Rows[1].Cells
    require.Len(t, epicCells, 2)
    require.Equal(t, "US", epicCells[0].Region)
    require.Equal(t, "RU", epicCells[1].Region)
    require.True(t, epicCells[1].Unavailable)
    require.Nil(t, epicCells[1].Converted)
}

func TestRankedOffers_FreeSortsFirstAndUnconvertibleLast(t *testing.T) {
    ctrl := gomock.NewController(t)
    steam := mockStore(ctrl, store.Steam, "Steam")

    free, freeCur := store.Free()
    steam.EXPECT().Offers(gomock.Any(), gomock.Any(), "US").
        Return([]store.Offer{{Store: store.Steam, Region: "US", Final: free, Currency: freeCur}}, nil)
    steam.EXPECT().Offers(gomock.Any(), gomock.Any(), "RU").
        Return([]store.Offer{{Store: store.Steam, Region: "RU", Final: store.Ptr(100), Currency: "RUB"}}, nil)
    steam.EXPECT().Offers(gomock.Any(), gomock.Any(), "TR").
        Return([]store.Offer{{Store: store.Steam, Region: "TR", Final: store.Ptr(5), Currency: "ZZZ"}}, nil)

    agg := newAggregator(t, steam)
    group := groupWith(map[store.ID]store.Ref{store.Steam: {ExternalID: "570"}})

    table, err := agg.RankedOffers(context.Background(), group, []string{"RU", "US", "TR"})
    require.NoError(t, err)
    require.Len(t, table.Rows, 1)
    cells := table.Rows[0].Cells

    require.Equal(t, "US", cells[0].Region)
    require.Equal(t, 0.0, *cells[0].Converted)
    require.Equal(t, "RU", cells[1].Region)
    // Unconvertible currency keeps its original price but ranks last.
    require.Equal(t, "TR", cells[2].Region)
    require.Nil(t, cells[2].Converted)
    require.False(t, cells[2].Unavailable)
    require.Equal(t, 5.0, *cells[2].Offers[0].Final)
}

func TestRankedOffers_Validation(t *testing.T) {
    agg := newAggregator(t)
    _, err := agg.RankedOffers(context.Background(), nil, []string{"RU"})
    require.Error(t, err)

    group := groupWith(map[store.ID]store.Ref{store.Steam: {ExternalID: "570"}})
    _, err = agg.RankedOffers(context.Background(), group, nil)
    require.Error(t, err)
}
