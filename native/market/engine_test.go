package market

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"nftmarket/auth"
)

type mockState struct {
	sync.Mutex
	count      uint64
	owners     map[uint64][20]byte
	listed     map[uint64]bool
	prices     map[uint64]*big.Int
	sellers    map[uint64][20]byte
	royaltyBps *uint32
	royaltyTo  *[20]byte
	feeBps     *uint32
	feeTo      *[20]byte
}

func newMockState() *mockState {
	return &mockState{
		owners:  make(map[uint64][20]byte),
		listed:  make(map[uint64]bool),
		prices:  make(map[uint64]*big.Int),
		sellers: make(map[uint64][20]byte),
	}
}

func (m *mockState) TokenCountGet() (uint64, error) { return m.count, nil }

func (m *mockState) TokenOwnerGet(id uint64) ([20]byte, bool, error) {
	owner, ok := m.owners[id]
	return owner, ok, nil
}

func (m *mockState) SaleApply(id uint64, buyer [20]byte) error {
	m.owners[id] = buyer
	delete(m.listed, id)
	delete(m.prices, id)
	delete(m.sellers, id)
	return nil
}

func (m *mockState) ListedGet(id uint64) (bool, error) { return m.listed[id], nil }

func (m *mockState) ListingPriceGet(id uint64) (*big.Int, bool, error) {
	price, ok := m.prices[id]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(price), true, nil
}

func (m *mockState) ListingSellerGet(id uint64) ([20]byte, bool, error) {
	seller, ok := m.sellers[id]
	return seller, ok, nil
}

func (m *mockState) ListingPut(id uint64, price *big.Int, seller [20]byte) error {
	m.listed[id] = true
	m.prices[id] = new(big.Int).Set(price)
	m.sellers[id] = seller
	return nil
}

func (m *mockState) ListingRemove(id uint64) error {
	delete(m.listed, id)
	delete(m.prices, id)
	delete(m.sellers, id)
	return nil
}

func (m *mockState) RoyaltyGet() (uint32, bool, error) {
	if m.royaltyBps == nil {
		return 0, false, nil
	}
	return *m.royaltyBps, true, nil
}

func (m *mockState) RoyaltyRecipientGet() ([20]byte, bool, error) {
	if m.royaltyTo == nil {
		return [20]byte{}, false, nil
	}
	return *m.royaltyTo, true, nil
}

func (m *mockState) PlatformFeeGet() (uint32, bool, error) {
	if m.feeBps == nil {
		return 0, false, nil
	}
	return *m.feeBps, true, nil
}

func (m *mockState) PlatformAddressGet() ([20]byte, bool, error) {
	if m.feeTo == nil {
		return [20]byte{}, false, nil
	}
	return *m.feeTo, true, nil
}

func (m *mockState) mintTo(owner [20]byte) uint64 {
	id := m.count
	m.owners[id] = owner
	m.count++
	return id
}

func (m *mockState) setFees(royaltyBps uint32, royaltyTo [20]byte, feeBps uint32, feeTo [20]byte) {
	m.royaltyBps = &royaltyBps
	m.royaltyTo = &royaltyTo
	m.feeBps = &feeBps
	m.feeTo = &feeTo
}

type recordingPayments struct {
	legs []string
	fail bool
}

func (p *recordingPayments) Transfer(_ context.Context, from, to [20]byte, amount *big.Int) error {
	if p.fail {
		return errors.New("payment rail unavailable")
	}
	p.legs = append(p.legs, fmt.Sprintf("%x->%x:%s", from[19], to[19], amount))
	return nil
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func authCtx(addrs ...[20]byte) context.Context {
	return auth.WithAuthorized(context.Background(), addrs...)
}

func newTestEngine() (*Engine, *mockState) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	return engine, state
}

func TestListHappyPath(t *testing.T) {
	engine, state := newTestEngine()
	seller := addr(0x0A)
	id := state.mintTo(seller)

	listing, err := engine.List(authCtx(seller), seller, id, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if listing.TokenID != id || listing.Seller != seller || listing.Price.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	listed, err := engine.IsListed(id)
	if err != nil || !listed {
		t.Fatalf("isListed = %v, %v", listed, err)
	}
}

func TestListValidation(t *testing.T) {
	engine, state := newTestEngine()
	seller, stranger := addr(0x0A), addr(0x0B)
	id := state.mintTo(seller)

	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(0)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(-5)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("negative price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := engine.List(authCtx(seller), seller, id+1, big.NewInt(10)); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("unknown token: expected ErrTokenNotFound, got %v", err)
	}
	if _, err := engine.List(authCtx(stranger), stranger, id, big.NewInt(10)); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("non-owner: expected ErrNotTokenOwner, got %v", err)
	}
	if _, err := engine.List(context.Background(), seller, id, big.NewInt(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing auth: expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(10)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(10)); !errors.Is(err, ErrAlreadyListed) {
		t.Fatalf("double list: expected ErrAlreadyListed, got %v", err)
	}
}

func TestCancelListing(t *testing.T) {
	engine, state := newTestEngine()
	seller, stranger := addr(0x0A), addr(0x0B)
	id := state.mintTo(seller)

	if err := engine.Cancel(authCtx(seller), seller, id); !errors.Is(err, ErrNotListed) {
		t.Fatalf("cancel unlisted: expected ErrNotListed, got %v", err)
	}
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(10)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if err := engine.Cancel(authCtx(stranger), stranger, id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("cancel by stranger: expected ErrUnauthorized, got %v", err)
	}
	if err := engine.Cancel(authCtx(seller), seller, id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	listed, err := engine.IsListed(id)
	if err != nil || listed {
		t.Fatalf("listing should be gone, got %v, %v", listed, err)
	}
	if _, ok := state.prices[id]; ok {
		t.Fatal("price sub-entry survived cancel")
	}
	if _, ok := state.sellers[id]; ok {
		t.Fatal("seller sub-entry survived cancel")
	}
}

func TestBuySettlesFeeSplit(t *testing.T) {
	engine, state := newTestEngine()
	seller, buyer := addr(0x0A), addr(0x0B)
	royaltyTo, platform := addr(0xE1), addr(0xE2)
	state.setFees(250, royaltyTo, 100, platform)
	id := state.mintTo(seller)

	payments := &recordingPayments{}
	engine.SetPayments(payments)

	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	settlement, err := engine.Buy(authCtx(buyer), buyer, id)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if settlement.Royalty.Cmp(big.NewInt(25_000)) != 0 {
		t.Fatalf("royalty = %s, want 25000", settlement.Royalty)
	}
	if settlement.PlatformFee.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("platform fee = %s, want 10000", settlement.PlatformFee)
	}
	if settlement.SellerAmount.Cmp(big.NewInt(965_000)) != 0 {
		t.Fatalf("seller amount = %s, want 965000", settlement.SellerAmount)
	}
	if state.owners[id] != buyer {
		t.Fatal("ownership did not move to buyer")
	}
	listed, err := engine.IsListed(id)
	if err != nil || listed {
		t.Fatalf("token still listed after buy: %v, %v", listed, err)
	}
	if len(payments.legs) != 3 {
		t.Fatalf("expected 3 payment legs, got %v", payments.legs)
	}
}

func TestBuyTwiceFailsNotListed(t *testing.T) {
	engine, state := newTestEngine()
	seller, buyer := addr(0x0A), addr(0x0B)
	id := state.mintTo(seller)
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(100)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := engine.Buy(authCtx(buyer), buyer, id); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if _, err := engine.Buy(authCtx(buyer), buyer, id); !errors.Is(err, ErrNotListed) {
		t.Fatalf("second buy: expected ErrNotListed, got %v", err)
	}
}

func TestConcurrentBuysSettleOnce(t *testing.T) {
	engine, state := newTestEngine()
	seller := addr(0x0A)
	state.setFees(250, addr(0xE1), 100, addr(0xE2))
	id := state.mintTo(seller)
	payments := &recordingPayments{}
	engine.SetPayments(payments)
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	const buyers = 4
	start := make(chan struct{})
	results := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		buyer := addr(0xB0 + byte(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Buy(authCtx(buyer), buyer, id)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrNotListed):
		default:
			t.Fatalf("unexpected buy error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d purchases settled, want exactly 1", succeeded)
	}
	if len(payments.legs) != 3 {
		t.Fatalf("expected 3 payment legs from a single settlement, got %v", payments.legs)
	}
	if state.listed[id] {
		t.Fatal("listing survived the purchase")
	}
}

func TestBuyRejectsSelfPurchase(t *testing.T) {
	engine, state := newTestEngine()
	seller := addr(0x0A)
	id := state.mintTo(seller)
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(100)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := engine.Buy(authCtx(seller), seller, id); !errors.Is(err, ErrSelfPurchase) {
		t.Fatalf("expected ErrSelfPurchase, got %v", err)
	}
}

func TestBuyDefaultsFallBackToSeller(t *testing.T) {
	engine, state := newTestEngine()
	seller, buyer := addr(0x0A), addr(0x0B)
	id := state.mintTo(seller)
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(10_000)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	settlement, err := engine.Buy(authCtx(buyer), buyer, id)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	// Default 250bp royalty and 100bp platform fee, both addressed to the
	// seller when no configuration was written.
	if settlement.Royalty.Cmp(big.NewInt(250)) != 0 || settlement.PlatformFee.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected default fees: %s / %s", settlement.Royalty, settlement.PlatformFee)
	}
	if settlement.RoyaltyRecipient != seller || settlement.PlatformAddress != seller {
		t.Fatal("fee recipients should default to the seller")
	}
}

func TestBuyAbortsWhenPaymentFails(t *testing.T) {
	engine, state := newTestEngine()
	seller, buyer := addr(0x0A), addr(0x0B)
	state.setFees(250, addr(0xE1), 100, addr(0xE2))
	id := state.mintTo(seller)
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(100)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	engine.SetPayments(&recordingPayments{fail: true})

	if _, err := engine.Buy(authCtx(buyer), buyer, id); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if state.owners[id] != seller {
		t.Fatal("failed payment must not move ownership")
	}
	listed, err := engine.IsListed(id)
	if err != nil || !listed {
		t.Fatalf("failed payment must leave the listing intact: %v, %v", listed, err)
	}
}

func TestSettlementPartsSumToPrice(t *testing.T) {
	price := big.NewInt(999_999_999_999)
	for _, royaltyBps := range []uint32{0, 1, 250, 3333, 10_000} {
		for _, feeBps := range []uint32{0, 1, 100, 6667} {
			if royaltyBps+feeBps > 10_000 {
				continue
			}
			engine, state := newTestEngine()
			seller, buyer := addr(0x0A), addr(0x0B)
			state.setFees(royaltyBps, addr(0xE1), feeBps, addr(0xE2))
			id := state.mintTo(seller)
			if _, err := engine.List(authCtx(seller), seller, id, price); err != nil {
				t.Fatalf("list failed: %v", err)
			}
			settlement, err := engine.Buy(authCtx(buyer), buyer, id)
			if err != nil {
				t.Fatalf("buy failed (%d/%d bp): %v", royaltyBps, feeBps, err)
			}
			sum := new(big.Int).Add(settlement.Royalty, settlement.PlatformFee)
			sum.Add(sum, settlement.SellerAmount)
			if sum.Cmp(price) != 0 {
				t.Fatalf("split does not sum to price at %d/%d bp: %s != %s", royaltyBps, feeBps, sum, price)
			}
		}
	}
}

func TestAllListingsAscendingOrder(t *testing.T) {
	engine, state := newTestEngine()
	seller, buyer := addr(0x0A), addr(0x0B)
	for i := 0; i < 5; i++ {
		state.mintTo(seller)
	}
	for _, id := range []uint64{3, 0, 2} {
		if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(int64(10+id))); err != nil {
			t.Fatalf("list %d failed: %v", id, err)
		}
	}
	if err := engine.Cancel(authCtx(seller), seller, 2); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := engine.Buy(authCtx(buyer), buyer, 3); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	listings, err := engine.AllListings()
	if err != nil {
		t.Fatalf("allListings failed: %v", err)
	}
	if len(listings) != 1 || listings[0].TokenID != 0 {
		t.Fatalf("unexpected listings: %+v", listings)
	}

	if _, err := engine.List(authCtx(seller), seller, 4, big.NewInt(7)); err != nil {
		t.Fatalf("list 4 failed: %v", err)
	}
	listings, err = engine.AllListings()
	if err != nil {
		t.Fatalf("allListings failed: %v", err)
	}
	if len(listings) != 2 || listings[0].TokenID != 0 || listings[1].TokenID != 4 {
		t.Fatalf("listings not in ascending id order: %+v", listings)
	}
}

func TestListingOf(t *testing.T) {
	engine, state := newTestEngine()
	seller := addr(0x0A)
	id := state.mintTo(seller)

	if _, ok, err := engine.ListingOf(id); err != nil || ok {
		t.Fatalf("unlisted token should yield ok=false, got %v, %v", ok, err)
	}
	if _, err := engine.List(authCtx(seller), seller, id, big.NewInt(55)); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	listing, ok, err := engine.ListingOf(id)
	if err != nil || !ok {
		t.Fatalf("listingOf = %v, %v", ok, err)
	}
	if listing.Price.Cmp(big.NewInt(55)) != 0 || listing.Seller != seller {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}
