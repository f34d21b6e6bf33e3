package state

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/auth"
	"nftmarket/native/market"
	"nftmarket/native/nft"
	"nftmarket/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ledger, err := storage.NewLedger(storage.NewMemDB(), 0)
	require.NoError(t, err)
	return NewManager(ledger)
}

// faultyDB refuses batch writes on demand so tests can assert that compound
// mutations land entirely or not at all.
type faultyDB struct {
	*storage.MemDB
	failBatch bool
}

func (db *faultyDB) WriteBatch(ops []storage.BatchOp) error {
	if db.failBatch {
		return errors.New("batch write refused")
	}
	return db.MemDB.WriteBatch(ops)
}

func newFaultyManager(t *testing.T) (*Manager, *faultyDB) {
	t.Helper()
	db := &faultyDB{MemDB: storage.NewMemDB()}
	ledger, err := storage.NewLedger(db, 0)
	require.NoError(t, err)
	return NewManager(ledger), db
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestKeyVariantsAreDisjoint(t *testing.T) {
	keys := [][]byte{
		adminKey(), metadataKey(), tokenCountKey(),
		royaltyKey(), royaltyRecipientKey(), platformFeeKey(), platformAddressKey(),
		ownerKey(0), ownerKey(1), tokenURIKey(0),
		approvalKey(0, addr(0x01)), approvalKey(0, addr(0x02)), approvalKey(1, addr(0x01)),
		delegatesKey(0), listedKey(0), listingPriceKey(0), listedByKey(0),
	}
	seen := make(map[string]int)
	for i, key := range keys {
		require.Len(t, key, 32)
		if prev, ok := seen[string(key)]; ok {
			t.Fatalf("key collision between variants %d and %d", prev, i)
		}
		seen[string(key)] = i
	}
}

func TestAdminRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.AdminGet()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.AdminSet(addr(0x01)))
	admin, ok, err := m.AdminGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, addr(0x01), admin)
}

func TestCollectionMetadataRoundTrip(t *testing.T) {
	m := newTestManager(t)
	meta := &nft.CollectionMetadata{
		Name:        "Galaxy Cats",
		Symbol:      "GCAT",
		Description: "hand-drawn cats",
		BaseURI:     "ipfs://cats/",
	}
	require.NoError(t, m.CollectionMetadataSet(meta))
	got, ok, err := m.CollectionMetadataGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, meta, got)
}

func TestTokenURIDefaultsToEmpty(t *testing.T) {
	m := newTestManager(t)
	uri, err := m.TokenURIGet(5)
	require.NoError(t, err)
	require.Equal(t, "", uri)

	require.NoError(t, m.MintApply(5, addr(0x0A), "ipfs://five"))
	uri, err = m.TokenURIGet(5)
	require.NoError(t, err)
	require.Equal(t, "ipfs://five", uri)
}

func TestApprovalSetAndTransferClear(t *testing.T) {
	m := newTestManager(t)
	d1, d2 := addr(0xD1), addr(0xD2)
	require.NoError(t, m.MintApply(0, addr(0x0A), ""))

	ok, err := m.ApprovalGet(0, d1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.ApprovalSet(0, d1))
	require.NoError(t, m.ApprovalSet(0, d2))
	// Granting the same delegate twice must not duplicate the set entry.
	require.NoError(t, m.ApprovalSet(0, d1))

	for _, d := range [][20]byte{d1, d2} {
		ok, err := m.ApprovalGet(0, d)
		require.NoError(t, err)
		require.True(t, ok)
	}

	cleared, err := m.TransferApply(0, addr(0x0B))
	require.NoError(t, err)
	require.Equal(t, 2, cleared)
	owner, ok, err := m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, addr(0x0B), owner)
	for _, d := range [][20]byte{d1, d2} {
		ok, err := m.ApprovalGet(0, d)
		require.NoError(t, err)
		require.False(t, ok)
	}

	cleared, err = m.TransferApply(0, addr(0x0C))
	require.NoError(t, err)
	require.Zero(t, cleared)
}

func TestMintApplyIsAllOrNothing(t *testing.T) {
	m, db := newFaultyManager(t)
	alice := addr(0x0A)

	db.failBatch = true
	require.Error(t, m.MintApply(0, alice, "ipfs://0"))
	count, err := m.TokenCountGet()
	require.NoError(t, err)
	require.Zero(t, count)
	_, ok, err := m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.False(t, ok)
	uri, err := m.TokenURIGet(0)
	require.NoError(t, err)
	require.Empty(t, uri)

	db.failBatch = false
	require.NoError(t, m.MintApply(0, alice, "ipfs://0"))
	count, err = m.TokenCountGet()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
	owner, ok, err := m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, alice, owner)
}

func TestSaleApplyIsAllOrNothing(t *testing.T) {
	m, db := newFaultyManager(t)
	seller, buyer := addr(0x0A), addr(0x0B)
	require.NoError(t, m.MintApply(0, seller, ""))
	require.NoError(t, m.ListingPut(0, big.NewInt(100), seller))

	db.failBatch = true
	require.Error(t, m.SaleApply(0, buyer))
	owner, ok, err := m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, seller, owner, "failed sale must not move ownership")
	listed, err := m.ListedGet(0)
	require.NoError(t, err)
	require.True(t, listed, "failed sale must leave the listing intact")
	_, ok, err = m.ListingPriceGet(0)
	require.NoError(t, err)
	require.True(t, ok)

	db.failBatch = false
	require.NoError(t, m.SaleApply(0, buyer))
	owner, ok, err = m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buyer, owner)
	listed, err = m.ListedGet(0)
	require.NoError(t, err)
	require.False(t, listed)
}

func TestListingSubEntries(t *testing.T) {
	m := newTestManager(t)
	seller := addr(0x0A)
	price := big.NewInt(123_456)

	listed, err := m.ListedGet(9)
	require.NoError(t, err)
	require.False(t, listed)

	require.NoError(t, m.ListingPut(9, price, seller))
	listed, err = m.ListedGet(9)
	require.NoError(t, err)
	require.True(t, listed)

	gotPrice, ok, err := m.ListingPriceGet(9)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, gotPrice.Cmp(price))

	gotSeller, ok, err := m.ListingSellerGet(9)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, seller, gotSeller)

	require.NoError(t, m.ListingRemove(9))
	listed, err = m.ListedGet(9)
	require.NoError(t, err)
	require.False(t, listed)
	_, ok, err = m.ListingPriceGet(9)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = m.ListingSellerGet(9)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFeeConfigRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.RoyaltyGet()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.RoyaltySet(250))
	require.NoError(t, m.RoyaltyRecipientSet(addr(0xE1)))
	require.NoError(t, m.PlatformFeeSet(100))
	require.NoError(t, m.PlatformAddressSet(addr(0xE2)))

	bps, ok, err := m.RoyaltyGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(250), bps)

	recipient, ok, err := m.RoyaltyRecipientGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, addr(0xE1), recipient)

	bps, ok, err = m.PlatformFeeGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(100), bps)

	platform, ok, err := m.PlatformAddressGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, addr(0xE2), platform)
}

func TestWritesRefreshEntryLifetime(t *testing.T) {
	db := storage.NewMemDB()
	// Default lifetime is short; the instance bump keeps written entries
	// alive for the full 30-day-equivalent window.
	ledger, err := storage.NewLedger(db, storage.DayInLedgers)
	require.NoError(t, err)
	m := NewManager(ledger)

	require.NoError(t, m.AdminSet(addr(0x01)))
	require.NoError(t, ledger.AdvanceSeq(storage.DayInLedgers*7))

	_, ok, err := m.AdminGet()
	require.NoError(t, err)
	require.True(t, ok, "admin entry should survive past the default lifetime")

	require.NoError(t, ledger.AdvanceSeq(storage.InstanceBumpAmount))
	_, ok, err = m.AdminGet()
	require.NoError(t, err)
	require.False(t, ok, "admin entry should expire once the bumped horizon passes")
}

func TestBatchedWritesRefreshEntryLifetime(t *testing.T) {
	ledger, err := storage.NewLedger(storage.NewMemDB(), storage.DayInLedgers)
	require.NoError(t, err)
	m := NewManager(ledger)

	require.NoError(t, m.MintApply(0, addr(0x0A), "ipfs://0"))
	require.NoError(t, ledger.AdvanceSeq(storage.DayInLedgers*7))
	_, ok, err := m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.True(t, ok, "owner entry should survive past the default lifetime")

	require.NoError(t, ledger.AdvanceSeq(storage.BalanceBumpAmount))
	_, ok, err = m.TokenOwnerGet(0)
	require.NoError(t, err)
	require.False(t, ok, "owner entry should expire once the bumped horizon passes")
}

// TestEnginesOverManager drives the full marketplace scenario through the real
// state manager and ledger: initialize, mint, list, buy, and verify the split.
func TestEnginesOverManager(t *testing.T) {
	m := newTestManager(t)

	registry := nft.NewEngine()
	registry.SetState(m)
	marketplace := market.NewEngine()
	marketplace.SetState(m)

	admin, alice, bob := addr(0x01), addr(0x0A), addr(0x0B)
	royaltyTo, platform := addr(0xE1), addr(0xE2)

	err := registry.Initialize(auth.WithAuthorized(context.Background(), admin), nft.InitializeParams{
		Admin:            admin,
		Name:             "Galaxy Cats",
		Symbol:           "GCAT",
		Description:      "hand-drawn cats",
		BaseURI:          "ipfs://cats/",
		RoyaltyBps:       250,
		RoyaltyRecipient: royaltyTo,
		PlatformFeeBps:   100,
		PlatformAddress:  platform,
	})
	require.NoError(t, err)

	id, err := registry.Mint(auth.WithAuthorized(context.Background(), alice), alice, "ipfs://cats/0")
	require.NoError(t, err)
	require.Zero(t, id)

	_, err = marketplace.List(auth.WithAuthorized(context.Background(), alice), alice, id, big.NewInt(1_000_000))
	require.NoError(t, err)

	// Listed tokens are frozen against ordinary transfers.
	err = registry.Transfer(auth.WithAuthorized(context.Background(), alice), alice, bob, id)
	require.ErrorIs(t, err, nft.ErrTokenListed)

	settlement, err := marketplace.Buy(auth.WithAuthorized(context.Background(), bob), bob, id)
	require.NoError(t, err)
	require.Zero(t, settlement.Royalty.Cmp(big.NewInt(25_000)))
	require.Zero(t, settlement.PlatformFee.Cmp(big.NewInt(10_000)))
	require.Zero(t, settlement.SellerAmount.Cmp(big.NewInt(965_000)))

	owner, err := registry.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, bob, owner)

	listed, err := marketplace.IsListed(id)
	require.NoError(t, err)
	require.False(t, listed)
}

// TestConcurrentMintsOverManager races mints through the real manager and
// ledger; the shared operation lock must hand out distinct sequential ids.
func TestConcurrentMintsOverManager(t *testing.T) {
	m := newTestManager(t)
	registry := nft.NewEngine()
	registry.SetState(m)
	alice := addr(0x0A)

	const minters = 16
	start := make(chan struct{})
	ids := make(chan uint64, minters)
	var wg sync.WaitGroup
	for i := 0; i < minters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := registry.Mint(auth.WithAuthorized(context.Background(), alice), alice, "")
			if err != nil {
				t.Errorf("mint failed: %v", err)
				return
			}
			ids <- id
		}()
	}
	close(start)
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, minters)
	for id := range ids {
		require.False(t, seen[id], "token id %d assigned twice", id)
		seen[id] = true
	}
	require.Len(t, seen, minters)
	count, err := registry.TokenCount()
	require.NoError(t, err)
	require.Equal(t, uint64(minters), count)
}
