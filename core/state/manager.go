package state

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/nft"
	"nftmarket/storage"
)

// Manager exposes typed accessors for every persisted entity over the shared
// ledger store. It is the single writer for all registry state: the engines
// talk to it through their narrow state interfaces and never touch raw keys.
//
// Writes refresh the entry's lifetime with the instance-wide threshold/bump
// window; token ownership entries use the balance window, mirroring the
// original split between instance and balance storage.
//
// The Manager also carries the operation-scope mutex. Engines bracket every
// public operation with Lock/Unlock, which serializes read-then-write
// sequences across all engines sharing the manager.
type Manager struct {
	mu     sync.Mutex
	ledger *storage.Ledger
}

// NewManager creates a state manager operating on the provided ledger store.
func NewManager(ledger *storage.Ledger) *Manager {
	return &Manager{ledger: ledger}
}

// Lock acquires the operation-scope mutex.
func (m *Manager) Lock() { m.mu.Lock() }

// Unlock releases the operation-scope mutex.
func (m *Manager) Unlock() { m.mu.Unlock() }

func (m *Manager) setAndExtend(key, value []byte, threshold, bump uint64) error {
	if err := m.ledger.Set(key, value); err != nil {
		return err
	}
	return m.ledger.ExtendTTL(key, threshold, bump)
}

func (m *Manager) setInstance(key, value []byte) error {
	return m.setAndExtend(key, value, storage.InstanceLifetimeThreshold, storage.InstanceBumpAmount)
}

func (m *Manager) getAddress(key []byte) ([20]byte, bool, error) {
	var addr [20]byte
	raw, ok, err := m.ledger.Get(key)
	if err != nil || !ok {
		return addr, false, err
	}
	if err := rlp.DecodeBytes(raw, &addr); err != nil {
		return addr, false, fmt.Errorf("state: decode address: %w", err)
	}
	return addr, true, nil
}

func (m *Manager) putAddress(key []byte, addr [20]byte) error {
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		return err
	}
	return m.setInstance(key, encoded)
}

func batchSetInstance(b *storage.Batch, key, value []byte) {
	b.Set(key, value, storage.InstanceLifetimeThreshold, storage.InstanceBumpAmount)
}

func batchPutAddress(b *storage.Batch, key []byte, addr [20]byte, balanceWindow bool) error {
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		return err
	}
	if balanceWindow {
		b.Set(key, encoded, storage.BalanceLifetimeThreshold, storage.BalanceBumpAmount)
		return nil
	}
	batchSetInstance(b, key, encoded)
	return nil
}

func (m *Manager) getUint32(key []byte) (uint32, bool, error) {
	raw, ok, err := m.ledger.Get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	var v uint32
	if err := rlp.DecodeBytes(raw, &v); err != nil {
		return 0, false, fmt.Errorf("state: decode uint32: %w", err)
	}
	return v, true, nil
}

func (m *Manager) putUint32(key []byte, v uint32) error {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return m.setInstance(key, encoded)
}

// --- Administrator ---

func (m *Manager) AdminGet() ([20]byte, bool, error) {
	return m.getAddress(adminKey())
}

func (m *Manager) AdminSet(addr [20]byte) error {
	return m.putAddress(adminKey(), addr)
}

// --- Collection metadata ---

func (m *Manager) CollectionMetadataGet() (*nft.CollectionMetadata, bool, error) {
	raw, ok, err := m.ledger.Get(metadataKey())
	if err != nil || !ok {
		return nil, false, err
	}
	meta := new(nft.CollectionMetadata)
	if err := rlp.DecodeBytes(raw, meta); err != nil {
		return nil, false, fmt.Errorf("state: decode collection metadata: %w", err)
	}
	return meta, true, nil
}

func (m *Manager) CollectionMetadataSet(meta *nft.CollectionMetadata) error {
	if meta == nil {
		return fmt.Errorf("state: nil collection metadata")
	}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.setInstance(metadataKey(), encoded)
}

// --- Token supply counter ---

func (m *Manager) TokenCountGet() (uint64, error) {
	raw, ok, err := m.ledger.Get(tokenCountKey())
	if err != nil || !ok {
		return 0, err
	}
	var count uint64
	if err := rlp.DecodeBytes(raw, &count); err != nil {
		return 0, fmt.Errorf("state: decode token count: %w", err)
	}
	return count, nil
}

func (m *Manager) TokenCountSet(count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return m.setInstance(tokenCountKey(), encoded)
}

// --- Token ownership ---

func (m *Manager) TokenOwnerGet(id uint64) ([20]byte, bool, error) {
	return m.getAddress(ownerKey(id))
}

// --- Token URI ---

// TokenURIGet returns the URI for the token, defaulting to the empty string
// when no entry exists.
func (m *Manager) TokenURIGet(id uint64) (string, error) {
	raw, ok, err := m.ledger.Get(tokenURIKey(id))
	if err != nil || !ok {
		return "", err
	}
	var uri string
	if err := rlp.DecodeBytes(raw, &uri); err != nil {
		return "", fmt.Errorf("state: decode token uri: %w", err)
	}
	return uri, nil
}

// MintApply persists a mint as one atomic batch: the token URI, the ownership
// entry, and the supply counter advanced to id+1. Either the token exists with
// its counter accounted for, or nothing was written.
func (m *Manager) MintApply(id uint64, owner [20]byte, uri string) error {
	batch := m.ledger.NewBatch()
	encodedURI, err := rlp.EncodeToBytes(uri)
	if err != nil {
		return err
	}
	batchSetInstance(batch, tokenURIKey(id), encodedURI)
	if err := batchPutAddress(batch, ownerKey(id), owner, true); err != nil {
		return err
	}
	encodedCount, err := rlp.EncodeToBytes(id + 1)
	if err != nil {
		return err
	}
	batchSetInstance(batch, tokenCountKey(), encodedCount)
	return batch.Write()
}

// TransferApply moves ownership and clears every approval grant for the token
// in one atomic batch, returning how many grants were removed.
func (m *Manager) TransferApply(id uint64, to [20]byte) (int, error) {
	delegates, err := m.approvalDelegates(id)
	if err != nil {
		return 0, err
	}
	batch := m.ledger.NewBatch()
	if err := batchPutAddress(batch, ownerKey(id), to, true); err != nil {
		return 0, err
	}
	for _, delegate := range delegates {
		batch.Remove(approvalKey(id, delegate))
	}
	if len(delegates) > 0 {
		batch.Remove(delegatesKey(id))
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	return len(delegates), nil
}

// SaleApply moves ownership to the buyer and deletes the three listing
// sub-entries in one atomic batch.
func (m *Manager) SaleApply(id uint64, buyer [20]byte) error {
	batch := m.ledger.NewBatch()
	if err := batchPutAddress(batch, ownerKey(id), buyer, true); err != nil {
		return err
	}
	batch.Remove(listedKey(id))
	batch.Remove(listingPriceKey(id))
	batch.Remove(listedByKey(id))
	return batch.Write()
}

// --- Approvals ---

// ApprovalGet reports whether the delegate holds a transfer grant for the
// token, defaulting to false when no entry exists.
func (m *Manager) ApprovalGet(id uint64, delegate [20]byte) (bool, error) {
	raw, ok, err := m.ledger.Get(approvalKey(id, delegate))
	if err != nil || !ok {
		return false, err
	}
	var approved bool
	if err := rlp.DecodeBytes(raw, &approved); err != nil {
		return false, fmt.Errorf("state: decode approval: %w", err)
	}
	return approved, nil
}

// ApprovalSet grants the delegate transfer rights for the token and records
// the delegate in the per-token set so the grant can be enumerated later.
func (m *Manager) ApprovalSet(id uint64, delegate [20]byte) error {
	encoded, err := rlp.EncodeToBytes(true)
	if err != nil {
		return err
	}
	if err := m.setInstance(approvalKey(id, delegate), encoded); err != nil {
		return err
	}
	delegates, err := m.approvalDelegates(id)
	if err != nil {
		return err
	}
	for _, existing := range delegates {
		if existing == delegate {
			return nil
		}
	}
	delegates = append(delegates, delegate)
	return m.approvalDelegatesPut(id, delegates)
}

func (m *Manager) approvalDelegates(id uint64) ([][20]byte, error) {
	raw, ok, err := m.ledger.Get(delegatesKey(id))
	if err != nil || !ok {
		return nil, err
	}
	var delegates [][20]byte
	if err := rlp.DecodeBytes(raw, &delegates); err != nil {
		return nil, fmt.Errorf("state: decode delegate set: %w", err)
	}
	return delegates, nil
}

func (m *Manager) approvalDelegatesPut(id uint64, delegates [][20]byte) error {
	encoded, err := rlp.EncodeToBytes(delegates)
	if err != nil {
		return err
	}
	return m.setInstance(delegatesKey(id), encoded)
}

// --- Listings ---

// ListedGet reports whether the token currently has an active listing,
// defaulting to false when no entry exists.
func (m *Manager) ListedGet(id uint64) (bool, error) {
	raw, ok, err := m.ledger.Get(listedKey(id))
	if err != nil || !ok {
		return false, err
	}
	var listed bool
	if err := rlp.DecodeBytes(raw, &listed); err != nil {
		return false, fmt.Errorf("state: decode listed flag: %w", err)
	}
	return listed, nil
}

func (m *Manager) ListingPriceGet(id uint64) (*big.Int, bool, error) {
	raw, ok, err := m.ledger.Get(listingPriceKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	price := new(big.Int)
	if err := rlp.DecodeBytes(raw, price); err != nil {
		return nil, false, fmt.Errorf("state: decode listing price: %w", err)
	}
	return price, true, nil
}

func (m *Manager) ListingSellerGet(id uint64) ([20]byte, bool, error) {
	return m.getAddress(listedByKey(id))
}

// ListingPut writes the three listing sub-entries in one atomic batch: the
// listed flag, the price, and the seller captured at listing time.
func (m *Manager) ListingPut(id uint64, price *big.Int, seller [20]byte) error {
	batch := m.ledger.NewBatch()
	flag, err := rlp.EncodeToBytes(true)
	if err != nil {
		return err
	}
	batchSetInstance(batch, listedKey(id), flag)
	encodedPrice, err := rlp.EncodeToBytes(price)
	if err != nil {
		return err
	}
	batchSetInstance(batch, listingPriceKey(id), encodedPrice)
	if err := batchPutAddress(batch, listedByKey(id), seller, false); err != nil {
		return err
	}
	return batch.Write()
}

// ListingRemove deletes all three listing sub-entries in one atomic batch.
func (m *Manager) ListingRemove(id uint64) error {
	batch := m.ledger.NewBatch()
	batch.Remove(listedKey(id))
	batch.Remove(listingPriceKey(id))
	batch.Remove(listedByKey(id))
	return batch.Write()
}

// --- Fee configuration ---

func (m *Manager) RoyaltyGet() (uint32, bool, error) {
	return m.getUint32(royaltyKey())
}

func (m *Manager) RoyaltySet(bps uint32) error {
	return m.putUint32(royaltyKey(), bps)
}

func (m *Manager) RoyaltyRecipientGet() ([20]byte, bool, error) {
	return m.getAddress(royaltyRecipientKey())
}

func (m *Manager) RoyaltyRecipientSet(addr [20]byte) error {
	return m.putAddress(royaltyRecipientKey(), addr)
}

func (m *Manager) PlatformFeeGet() (uint32, bool, error) {
	return m.getUint32(platformFeeKey())
}

func (m *Manager) PlatformFeeSet(bps uint32) error {
	return m.putUint32(platformFeeKey(), bps)
}

func (m *Manager) PlatformAddressGet() ([20]byte, bool, error) {
	return m.getAddress(platformAddressKey())
}

func (m *Manager) PlatformAddressSet(addr [20]byte) error {
	return m.putAddress(platformAddressKey(), addr)
}
