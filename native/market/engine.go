package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"nftmarket/auth"
	"nftmarket/core/events"
)

const (
	maxBasisPoints = 10_000

	// DefaultRoyaltyBps applies when no royalty configuration was written.
	DefaultRoyaltyBps = 250
	// DefaultPlatformFeeBps applies when no platform fee configuration was
	// written.
	DefaultPlatformFeeBps = 100
)

// engineState embeds sync.Locker: the backing manager carries the
// operation-scope mutex shared with the registry engine, so a listing check
// and the write it guards can never interleave with a concurrent transfer or
// purchase.
type engineState interface {
	sync.Locker
	TokenCountGet() (uint64, error)
	TokenOwnerGet(id uint64) ([20]byte, bool, error)
	SaleApply(id uint64, buyer [20]byte) error
	ListedGet(id uint64) (bool, error)
	ListingPriceGet(id uint64) (*big.Int, bool, error)
	ListingSellerGet(id uint64) ([20]byte, bool, error)
	ListingPut(id uint64, price *big.Int, seller [20]byte) error
	ListingRemove(id uint64) error
	RoyaltyGet() (uint32, bool, error)
	RoyaltyRecipientGet() ([20]byte, bool, error)
	PlatformFeeGet() (uint32, bool, error)
	PlatformAddressGet() ([20]byte, bool, error)
}

// PaymentEngine settles the value legs of a purchase. Implementations move
// native currency between the parties; the engine treats any error as a veto
// and aborts the purchase before ownership changes hands.
type PaymentEngine interface {
	Transfer(ctx context.Context, from, to [20]byte, amount *big.Int) error
}

// NoopPayments accepts every settlement without moving value. It stands in for
// an external payment rail that is out of scope for the registry itself.
type NoopPayments struct{}

// Transfer implements the PaymentEngine interface.
func (NoopPayments) Transfer(context.Context, [20]byte, [20]byte, *big.Int) error { return nil }

// Engine drives the listing lifecycle: a token moves Unlisted -> Listed via
// List, and back to Unlisted via Cancel (by the seller) or Buy (by anyone
// else, settling the fee split and transferring ownership atomically).
type Engine struct {
	state    engineState
	payments PaymentEngine
	emitter  events.Emitter
}

// NewEngine constructs a marketplace engine with a no-op emitter and no-op
// payment settlement.
func NewEngine() *Engine {
	return &Engine{
		payments: NoopPayments{},
		emitter:  events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPayments configures the payment settlement backend. Passing nil resets
// it to the no-op implementation.
func (e *Engine) SetPayments(payments PaymentEngine) {
	if payments == nil {
		e.payments = NoopPayments{}
		return
	}
	e.payments = payments
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// List creates a fixed-price listing for the token. The caller must be the
// current owner and must have authorized the call.
func (e *Engine) List(ctx context.Context, owner [20]byte, tokenID uint64, price *big.Int) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := auth.RequireAuth(ctx, owner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	e.state.Lock()
	defer e.state.Unlock()
	current, ok, err := e.state.TokenOwnerGet(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	if current != owner {
		return nil, ErrNotTokenOwner
	}
	listed, err := e.state.ListedGet(tokenID)
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, ErrAlreadyListed
	}
	amount := new(big.Int).Set(price)
	if err := e.state.ListingPut(tokenID, amount, owner); err != nil {
		return nil, err
	}
	listing := &Listing{TokenID: tokenID, Price: amount, Seller: owner}
	e.emit(events.TokenListed{TokenID: tokenID, Seller: owner, Price: new(big.Int).Set(amount)})
	return listing.Clone(), nil
}

// Cancel removes an active listing. Only the seller captured at listing time
// may cancel, regardless of who currently owns the token.
func (e *Engine) Cancel(ctx context.Context, caller [20]byte, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := auth.RequireAuth(ctx, caller); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.state.Lock()
	defer e.state.Unlock()
	listed, err := e.state.ListedGet(tokenID)
	if err != nil {
		return err
	}
	if !listed {
		return ErrNotListed
	}
	seller, ok, err := e.state.ListingSellerGet(tokenID)
	if err != nil {
		return err
	}
	if !ok || seller != caller {
		return ErrUnauthorized
	}
	if err := e.state.ListingRemove(tokenID); err != nil {
		return err
	}
	e.emit(events.ListingCancelled{TokenID: tokenID, Seller: seller})
	return nil
}

// Buy settles an active listing: it computes the royalty/platform/seller
// split, runs payment settlement, then transfers ownership to the buyer and
// removes the listing within the same operation. A payment failure aborts the
// purchase with no state change.
func (e *Engine) Buy(ctx context.Context, buyer [20]byte, tokenID uint64) (*Settlement, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.payments == nil {
		return nil, ErrNilPayments
	}
	if err := auth.RequireAuth(ctx, buyer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.state.Lock()
	defer e.state.Unlock()
	listed, err := e.state.ListedGet(tokenID)
	if err != nil {
		return nil, err
	}
	if !listed {
		return nil, ErrNotListed
	}
	price, ok, err := e.state.ListingPriceGet(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotListed
	}
	seller, ok, err := e.state.ListingSellerGet(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotListed
	}
	if buyer == seller {
		return nil, ErrSelfPurchase
	}
	settlement, err := e.computeSettlement(tokenID, buyer, seller, price)
	if err != nil {
		return nil, err
	}
	// Payment settlement runs under the operation lock so a vetoed payment
	// leaves the listing exactly as the buyer observed it.
	if err := e.settle(ctx, settlement); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if err := e.state.SaleApply(tokenID, buyer); err != nil {
		return nil, err
	}
	e.emit(events.TokenSold{
		TokenID:      tokenID,
		Seller:       seller,
		Buyer:        buyer,
		Price:        new(big.Int).Set(settlement.Price),
		Royalty:      new(big.Int).Set(settlement.Royalty),
		PlatformFee:  new(big.Int).Set(settlement.PlatformFee),
		SellerAmount: new(big.Int).Set(settlement.SellerAmount),
	})
	return settlement, nil
}

// computeSettlement derives the three-way split with truncating division.
// Absent fee configuration falls back to the defaults, and absent recipients
// fall back to the seller so no value leg is ever unaddressed.
func (e *Engine) computeSettlement(tokenID uint64, buyer, seller [20]byte, price *big.Int) (*Settlement, error) {
	royaltyBps := uint32(DefaultRoyaltyBps)
	if bps, ok, err := e.state.RoyaltyGet(); err != nil {
		return nil, err
	} else if ok {
		royaltyBps = bps
	}
	royaltyRecipient := seller
	if addr, ok, err := e.state.RoyaltyRecipientGet(); err != nil {
		return nil, err
	} else if ok {
		royaltyRecipient = addr
	}
	platformBps := uint32(DefaultPlatformFeeBps)
	if bps, ok, err := e.state.PlatformFeeGet(); err != nil {
		return nil, err
	} else if ok {
		platformBps = bps
	}
	platformAddress := seller
	if addr, ok, err := e.state.PlatformAddressGet(); err != nil {
		return nil, err
	} else if ok {
		platformAddress = addr
	}

	denominator := big.NewInt(maxBasisPoints)
	royalty := new(big.Int).Mul(price, big.NewInt(int64(royaltyBps)))
	royalty.Div(royalty, denominator)
	platformFee := new(big.Int).Mul(price, big.NewInt(int64(platformBps)))
	platformFee.Div(platformFee, denominator)
	sellerAmount := new(big.Int).Sub(price, royalty)
	sellerAmount.Sub(sellerAmount, platformFee)

	return &Settlement{
		TokenID:          tokenID,
		Buyer:            buyer,
		Seller:           seller,
		Price:            new(big.Int).Set(price),
		Royalty:          royalty,
		RoyaltyRecipient: royaltyRecipient,
		PlatformFee:      platformFee,
		PlatformAddress:  platformAddress,
		SellerAmount:     sellerAmount,
	}, nil
}

func (e *Engine) settle(ctx context.Context, s *Settlement) error {
	legs := []struct {
		to     [20]byte
		amount *big.Int
	}{
		{s.RoyaltyRecipient, s.Royalty},
		{s.PlatformAddress, s.PlatformFee},
		{s.Seller, s.SellerAmount},
	}
	for _, leg := range legs {
		if leg.amount == nil || leg.amount.Sign() <= 0 || leg.to == s.Buyer {
			continue
		}
		if err := e.payments.Transfer(ctx, s.Buyer, leg.to, leg.amount); err != nil {
			return err
		}
	}
	return nil
}

// IsListed reports whether the token currently has an active listing.
func (e *Engine) IsListed(tokenID uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.state.ListedGet(tokenID)
}

// ListingOf returns the active listing for the token, or ok=false when the
// token is not listed.
func (e *Engine) ListingOf(tokenID uint64) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.listingOf(tokenID)
}

func (e *Engine) listingOf(tokenID uint64) (*Listing, bool, error) {
	listed, err := e.state.ListedGet(tokenID)
	if err != nil {
		return nil, false, err
	}
	if !listed {
		return nil, false, nil
	}
	price, ok, err := e.state.ListingPriceGet(tokenID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	seller, ok, err := e.state.ListingSellerGet(tokenID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Listing{TokenID: tokenID, Price: price, Seller: seller}, true, nil
}

// AllListings returns every active listing in ascending token-id order. The
// scan is linear in total minted supply; the ledger store has no secondary
// index over listed status.
func (e *Engine) AllListings() ([]*Listing, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	count, err := e.state.TokenCountGet()
	if err != nil {
		return nil, err
	}
	listings := make([]*Listing, 0)
	for id := uint64(0); id < count; id++ {
		listing, ok, err := e.listingOf(id)
		if err != nil {
			return nil, err
		}
		if ok {
			listings = append(listings, listing)
		}
	}
	return listings, nil
}
