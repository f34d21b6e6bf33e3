package events

import "math/big"

const (
	// TypeTokenListed is emitted when a token enters the Listed state.
	TypeTokenListed = "market.listed"
	// TypeListingCancelled is emitted when the seller withdraws a listing.
	TypeListingCancelled = "market.listing.cancelled"
	// TypeTokenSold is emitted when a buy settles: ownership moved to the
	// buyer and the listing removed in the same operation.
	TypeTokenSold = "market.sold"
)

// TokenListed captures a new fixed-price listing.
type TokenListed struct {
	TokenID uint64
	Seller  [20]byte
	Price   *big.Int
}

func (TokenListed) EventType() string { return TypeTokenListed }

// ListingCancelled captures a seller-initiated listing removal.
type ListingCancelled struct {
	TokenID uint64
	Seller  [20]byte
}

func (ListingCancelled) EventType() string { return TypeListingCancelled }

// TokenSold captures a settled purchase including the computed fee split.
type TokenSold struct {
	TokenID      uint64
	Seller       [20]byte
	Buyer        [20]byte
	Price        *big.Int
	Royalty      *big.Int
	PlatformFee  *big.Int
	SellerAmount *big.Int
}

func (TokenSold) EventType() string { return TypeTokenSold }
