package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// The persisted key space is a closed set of tagged variants. Each constructor
// below corresponds to exactly one variant; the prefix and binary payload are
// concatenated and keccak-hashed before reaching the ledger store, matching
// the fixed-width key discipline of the backing trie-style stores.
var (
	adminKeyBytes            = []byte("nft/admin")
	metadataKeyBytes         = []byte("nft/metadata")
	tokenCountKeyBytes       = []byte("nft/count")
	royaltyKeyBytes          = []byte("nft/royalty")
	royaltyRecipientKeyBytes = []byte("nft/royalty-recipient")
	platformFeeKeyBytes      = []byte("nft/platform-fee")
	platformAddressKeyBytes  = []byte("nft/platform-address")

	ownerPrefix     = []byte("nft/owner:")
	tokenURIPrefix  = []byte("nft/uri:")
	approvalPrefix  = []byte("nft/approval:")
	delegatesPrefix = []byte("nft/delegates:")

	listedPrefix       = []byte("market/listed:")
	listingPricePrefix = []byte("market/price:")
	listedByPrefix     = []byte("market/seller:")
)

func hashKey(parts ...[]byte) []byte {
	return ethcrypto.Keccak256(parts...)
}

func tokenIDBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func adminKey() []byte            { return hashKey(adminKeyBytes) }
func metadataKey() []byte         { return hashKey(metadataKeyBytes) }
func tokenCountKey() []byte       { return hashKey(tokenCountKeyBytes) }
func royaltyKey() []byte          { return hashKey(royaltyKeyBytes) }
func royaltyRecipientKey() []byte { return hashKey(royaltyRecipientKeyBytes) }
func platformFeeKey() []byte      { return hashKey(platformFeeKeyBytes) }
func platformAddressKey() []byte  { return hashKey(platformAddressKeyBytes) }

func ownerKey(id uint64) []byte    { return hashKey(ownerPrefix, tokenIDBytes(id)) }
func tokenURIKey(id uint64) []byte { return hashKey(tokenURIPrefix, tokenIDBytes(id)) }

func approvalKey(id uint64, delegate [20]byte) []byte {
	return hashKey(approvalPrefix, tokenIDBytes(id), delegate[:])
}

// delegatesKey addresses the per-token set of approved delegates. The set is
// the reverse index that makes clearing approvals possible.
func delegatesKey(id uint64) []byte { return hashKey(delegatesPrefix, tokenIDBytes(id)) }

func listedKey(id uint64) []byte       { return hashKey(listedPrefix, tokenIDBytes(id)) }
func listingPriceKey(id uint64) []byte { return hashKey(listingPricePrefix, tokenIDBytes(id)) }
func listedByKey(id uint64) []byte     { return hashKey(listedByPrefix, tokenIDBytes(id)) }
