package aggregator

import "gameprices/internal/store"

// Platform is a user-selectable target platform.
type Platform string

const (
    PlatformPC         Platform = "pc"
    PlatformXboxOne    Platform = "xbox_one"
    PlatformXboxSeries Platform = "xbox_series"
    PlatformPS4        Platform = "ps4"
    PlatformPS5        Platform = "ps5"
    PlatformSwitch     Platform = "switch"
)

// storeOrder fixes the fan-out and display order of storefronts.
var storeOrder = []store.ID{
    store.Steam,
    store.Epic,
    store.GOG,
    store.Xbox,
    store.PlayStation,
    store.Nintendo,
}

var platformStores = map[Platform][]store.ID{
    PlatformPC:         {store.Steam, store.Epic, store.GOG, store.Xbox},
    PlatformXboxOne:    {store.Xbox},
    PlatformXboxSeries: {store.Xbox},
    PlatformPS4:        {store.PlayStation},
    PlatformPS5:        {store.PlayStation},
    PlatformSwitch:     {store.Nintendo},
}

// RelevantStores returns the storefronts that sell games for at least one
// of the platforms, in fixed display order.
func RelevantStores(platforms []Platform) []store.ID {
    wanted := make(map[store.ID]struct{})
    for _, p := range platforms {
        for _, id := range platformStores[p] {
            wanted[id] = struct{}{}
        }
    }
    var out []store.ID
    for _, id := range storeOrder {
        if _, ok := wanted[id]; ok { out = append(out, id) }
    }
    return out
}
