// Package chain defines the supported chain families and common utilities
// for amounts, retries and rate limiting.
package chain

// Family identifies a category of blockchain with its own wallet protocol.
type Family string

// Supported chain families.
const (
	Stacks    Family = "stacks"
	Rootstock Family = "rootstock"
)

// String returns the family identifier string.
func (f Family) String() string {
	return string(f)
}

// IsValid returns true if the family is known.
func (f Family) IsValid() bool {
	switch f {
	case Stacks, Rootstock:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-facing name for a family.
func (f Family) DisplayName() string {
	switch f {
	case Stacks:
		return "Stacks"
	case Rootstock:
		return "Rootstock"
	default:
		return string(f)
	}
}

// ParseFamily parses a string into a Family.
func ParseFamily(s string) (Family, bool) {
	f := Family(s)
	return f, f.IsValid()
}

// Families returns all supported chain families.
func Families() []Family {
	return []Family{Stacks, Rootstock}
}

// Asset describes a balance-bearing asset on a chain family.
type Asset struct {
	Symbol        string // Display symbol (STX, NOCC, RBTC)
	Decimals      int    // Smallest-unit to display-unit factor, as a power of ten
	DisplayPlaces int    // Fractional digits shown below the magnitude thresholds
}

// Native assets per family.
var (
	AssetSTX  = Asset{Symbol: "STX", Decimals: 6, DisplayPlaces: 4}
	AssetNOCC = Asset{Symbol: "NOCC", Decimals: 3, DisplayPlaces: 1}
	AssetRBTC = Asset{Symbol: "RBTC", Decimals: 18, DisplayPlaces: 4}
)

// NativeAsset returns the native asset for a family.
func (f Family) NativeAsset() Asset {
	switch f {
	case Stacks:
		return AssetSTX
	case Rootstock:
		return AssetRBTC
	default:
		return Asset{}
	}
}

// ShortAddress shortens an address for display: first six characters, an
// ellipsis, then the last four. Addresses too short to shorten are returned
// unchanged.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
