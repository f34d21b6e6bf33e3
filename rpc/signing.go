package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// Signed methods authenticate the caller with a 65-byte secp256k1 signature
// over CallDigest(method, payload), where the payload is the RLP encoding of
// the method's parameters in declaration order. The builders below are the
// single source of truth for that encoding; clients use them to sign and the
// server uses them to verify.

type initializePayload struct {
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

// InitializePayload encodes the nft_initialize signing payload.
func InitializePayload(admin [20]byte, name, symbol, description, baseURI string, royaltyBps uint32, royaltyRecipient [20]byte, platformFeeBps uint32, platformAddress [20]byte) ([]byte, error) {
	return rlp.EncodeToBytes(initializePayload{
		Admin:            admin,
		Name:             name,
		Symbol:           symbol,
		Description:      description,
		BaseURI:          baseURI,
		RoyaltyBps:       royaltyBps,
		RoyaltyRecipient: royaltyRecipient,
		PlatformFeeBps:   platformFeeBps,
		PlatformAddress:  platformAddress,
	})
}

type mintPayload struct {
	To  [20]byte
	URI string
}

// MintPayload encodes the nft_mint signing payload.
func MintPayload(to [20]byte, uri string) ([]byte, error) {
	return rlp.EncodeToBytes(mintPayload{To: to, URI: uri})
}

type transferPayload struct {
	From    [20]byte
	To      [20]byte
	TokenID uint64
}

// TransferPayload encodes the nft_transfer signing payload.
func TransferPayload(from, to [20]byte, tokenID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(transferPayload{From: from, To: to, TokenID: tokenID})
}

type approvePayload struct {
	Owner    [20]byte
	Delegate [20]byte
	TokenID  uint64
}

// ApprovePayload encodes the nft_approve signing payload.
func ApprovePayload(owner, delegate [20]byte, tokenID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(approvePayload{Owner: owner, Delegate: delegate, TokenID: tokenID})
}

type feeUpdatePayload struct {
	Admin     [20]byte
	Bps       uint32
	Recipient [20]byte
}

// FeeUpdatePayload encodes the signing payload shared by nft_updateRoyalty and
// nft_updatePlatformFee. The method name in the digest keeps the two apart.
func FeeUpdatePayload(admin [20]byte, bps uint32, recipient [20]byte) ([]byte, error) {
	return rlp.EncodeToBytes(feeUpdatePayload{Admin: admin, Bps: bps, Recipient: recipient})
}

type adminRotatePayload struct {
	Admin    [20]byte
	NewAdmin [20]byte
}

// AdminRotatePayload encodes the nft_updateAdmin signing payload.
func AdminRotatePayload(admin, newAdmin [20]byte) ([]byte, error) {
	return rlp.EncodeToBytes(adminRotatePayload{Admin: admin, NewAdmin: newAdmin})
}

type listPayload struct {
	Owner   [20]byte
	TokenID uint64
	Price   *big.Int
}

// ListPayload encodes the market_listToken signing payload.
func ListPayload(owner [20]byte, tokenID uint64, price *big.Int) ([]byte, error) {
	return rlp.EncodeToBytes(listPayload{Owner: owner, TokenID: tokenID, Price: price})
}

type tokenActionPayload struct {
	Caller  [20]byte
	TokenID uint64
}

// CancelPayload encodes the market_cancelListing signing payload.
func CancelPayload(caller [20]byte, tokenID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(tokenActionPayload{Caller: caller, TokenID: tokenID})
}

// BuyPayload encodes the market_buyToken signing payload.
func BuyPayload(buyer [20]byte, tokenID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(tokenActionPayload{Caller: buyer, TokenID: tokenID})
}
