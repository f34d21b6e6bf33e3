package events

const (
	// TypeCollectionInitialized is emitted once when the collection is set up.
	TypeCollectionInitialized = "nft.initialized"
	// TypeTokenMinted is emitted when a new token id is assigned.
	TypeTokenMinted = "nft.minted"
	// TypeTokenTransferred is emitted on every ownership change outside a sale.
	TypeTokenTransferred = "nft.transferred"
	// TypeTokenApproved is emitted when a delegate is granted transfer rights.
	TypeTokenApproved = "nft.approved"
	// TypeApprovalsCleared is emitted when all delegate grants for a token are
	// removed.
	TypeApprovalsCleared = "nft.approvals.cleared"
	// TypeRoyaltyUpdated is emitted when the royalty configuration changes.
	TypeRoyaltyUpdated = "nft.royalty.updated"
	// TypePlatformFeeUpdated is emitted when the platform fee configuration
	// changes.
	TypePlatformFeeUpdated = "nft.platform_fee.updated"
	// TypeAdminRotated is emitted when the administrator hands over control.
	TypeAdminRotated = "nft.admin.rotated"
)

// CollectionInitialized captures the one-time collection setup.
type CollectionInitialized struct {
	Admin  [20]byte
	Name   string
	Symbol string
}

func (CollectionInitialized) EventType() string { return TypeCollectionInitialized }

// TokenMinted records the assignment of a fresh token id to its first owner.
type TokenMinted struct {
	TokenID uint64
	Owner   [20]byte
	URI     string
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

// TokenTransferred records an ordinary (non-sale) ownership change.
type TokenTransferred struct {
	TokenID uint64
	From    [20]byte
	To      [20]byte
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

// TokenApproved records a delegate grant for a specific token.
type TokenApproved struct {
	TokenID  uint64
	Owner    [20]byte
	Delegate [20]byte
}

func (TokenApproved) EventType() string { return TypeTokenApproved }

// ApprovalsCleared records the removal of every delegate grant for a token.
type ApprovalsCleared struct {
	TokenID uint64
	Cleared int
}

func (ApprovalsCleared) EventType() string { return TypeApprovalsCleared }

// RoyaltyUpdated records a royalty configuration change.
type RoyaltyUpdated struct {
	Bps       uint32
	Recipient [20]byte
}

func (RoyaltyUpdated) EventType() string { return TypeRoyaltyUpdated }

// PlatformFeeUpdated records a platform fee configuration change.
type PlatformFeeUpdated struct {
	Bps     uint32
	Address [20]byte
}

func (PlatformFeeUpdated) EventType() string { return TypePlatformFeeUpdated }

// AdminRotated records an administrator handover.
type AdminRotated struct {
	Previous [20]byte
	Next     [20]byte
}

func (AdminRotated) EventType() string { return TypeAdminRotated }
