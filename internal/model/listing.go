// Package model defines the core domain models used throughout the application.
package model

// NanoPerTON is the number of nanotons in one TON. All on-chain amounts
// are carried in nanotons to keep arithmetic in integers.
const NanoPerTON int64 = 1_000_000_000

// ListingKind selects which marketplace category a source watches.
type ListingKind string

// Listing kind constants.
const (
	KindNumbers   ListingKind = "numbers"
	KindUsernames ListingKind = "usernames"
)

// Listing is one marketplace item offer as returned by a listing source.
// Listings are produced fresh on every fetch and never mutated.
type Listing struct {
	ID           string
	DisplayLabel string // Human-readable label (the number or username itself)
	RawPriceText string // Price cell text as scraped, before parsing
	PriceTON     *int64 // nil when RawPriceText did not parse as an integer
	Status       string // Marketplace status badge ("Available", "On auction", ...)
}

// ListingKey is the identity used for novelty detection. A listing is new
// to a monitoring session iff its key has not been seen before; a price
// or status change on the same id produces a new key.
type ListingKey struct {
	ID         string
	PriceTON   int64
	PriceKnown bool
	Status     string
}

// Key derives the dedup key for this listing. Listings with unparseable
// prices still get a stable key so they participate in dedup.
func (l Listing) Key() ListingKey {
	k := ListingKey{ID: l.ID, Status: l.Status}
	if l.PriceTON != nil {
		k.PriceTON = *l.PriceTON
		k.PriceKnown = true
	}
	return k
}

// Affordable reports whether the listing has a known price at or below
// maxPriceTON. Listings without a parsed price are never affordable.
func (l Listing) Affordable(maxPriceTON int64) bool {
	return l.PriceTON != nil && *l.PriceTON <= maxPriceTON
}

// CheapestAffordable returns the lowest-priced listing within maxPriceTON,
// or false when no listing qualifies.
func CheapestAffordable(listings []Listing, maxPriceTON int64) (Listing, bool) {
	var best Listing
	found := false
	for _, l := range listings {
		if !l.Affordable(maxPriceTON) {
			continue
		}
		if !found || *l.PriceTON < *best.PriceTON {
			best = l
			found = true
		}
	}
	return best, found
}

// WalletStatus is a point-in-time snapshot of the funding wallet.
type WalletStatus struct {
	Address     string
	BalanceNano int64
}

// BidLink is the payment instruction returned by the marketplace quote
// endpoint: where to send funds, how much, and an opaque payload that
// must ride along with the transfer.
type BidLink struct {
	Address    string
	AmountNano int64
	PayloadB64 string
}

// WalletIdentity is the account descriptor the marketplace requires when
// requesting a bid link. Shapes mirror the TON Connect account payload.
type WalletIdentity struct {
	Address         string `json:"address"`
	Chain           string `json:"chain"`
	WalletStateInit string `json:"walletStateInit"`
	PublicKey       string `json:"publicKey"`
}
