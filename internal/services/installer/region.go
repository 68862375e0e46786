package installer

import "strings"

type Region string

const (
	RegionJPN     Region = "JPN"
	RegionUSA     Region = "USA"
	RegionEUR     Region = "EUR"
	RegionUnknown Region = "UNKNOWN"
)

// menuTitleIDs identifies the region by the system menu's title ID.
var menuTitleIDs = map[string]Region{
	"0005001010040000": RegionJPN,
	"0005001010040100": RegionUSA,
	"0005001010040200": RegionEUR,
}

// ResolveRegion classifies a menu title ID. It accepts an optional 0x
// prefix and a dash between the high and low halves.
func ResolveRegion(titleID string) Region {
	id := strings.ToLower(strings.TrimSpace(titleID))
	id = strings.TrimPrefix(id, "0x")
	id = strings.ReplaceAll(id, "-", "")

	if region, ok := menuTitleIDs[id]; ok {
		return region
	}

	return RegionUnknown
}
