package market

import "math/big"

// Listing is an open offer by the seller to part with a token at a fixed
// price. Seller identity is captured at listing time and is the sole authority
// to cancel, even if ownership were to change out from under it.
type Listing struct {
	TokenID uint64   `json:"tokenId"`
	Price   *big.Int `json:"price"`
	Seller  [20]byte `json:"seller"`
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	}
	return &clone
}

// Settlement is the computed three-way split for a completed purchase. The
// royalty and platform legs truncate and the seller receives the exact
// remainder, so Royalty+PlatformFee+SellerAmount always equals Price.
type Settlement struct {
	TokenID          uint64   `json:"tokenId"`
	Buyer            [20]byte `json:"buyer"`
	Seller           [20]byte `json:"seller"`
	Price            *big.Int `json:"price"`
	Royalty          *big.Int `json:"royalty"`
	RoyaltyRecipient [20]byte `json:"royaltyRecipient"`
	PlatformFee      *big.Int `json:"platformFee"`
	PlatformAddress  [20]byte `json:"platformAddress"`
	SellerAmount     *big.Int `json:"sellerAmount"`
}
