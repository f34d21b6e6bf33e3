package nft

// CollectionMetadata holds the descriptive fields of the collection. The
// record is written once at initialization and has no update operation.
type CollectionMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	BaseURI     string `json:"baseUri"`
}

// Token aggregates the per-token state returned by token queries.
type Token struct {
	TokenID uint64   `json:"tokenId"`
	Owner   [20]byte `json:"owner"`
	URI     string   `json:"uri"`
}

// RoyaltyConfig pairs the royalty percentage with its recipient.
type RoyaltyConfig struct {
	Bps       uint32   `json:"bps"`
	Recipient [20]byte `json:"recipient"`
}

// PlatformFeeConfig pairs the platform fee percentage with the fee address.
type PlatformFeeConfig struct {
	Bps     uint32   `json:"bps"`
	Address [20]byte `json:"address"`
}

// InitializeParams bundles the one-time collection setup values.
type InitializeParams struct {
	Admin            [20]byte
	Name             string
	Symbol           string
	Description      string
	BaseURI          string
	RoyaltyBps       uint32
	RoyaltyRecipient [20]byte
	PlatformFeeBps   uint32
	PlatformAddress  [20]byte
}
