package nft

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nftmarket/auth"
	"nftmarket/core/events"
)

const (
	maxBasisPoints = 10_000

	defaultRoyaltyBps     = 250
	defaultPlatformFeeBps = 100
)

// engineState embeds sync.Locker: the backing manager carries the
// operation-scope mutex and every public engine operation runs under it, so
// read-then-write sequences never interleave across concurrent callers.
type engineState interface {
	sync.Locker
	AdminGet() ([20]byte, bool, error)
	AdminSet(addr [20]byte) error
	CollectionMetadataGet() (*CollectionMetadata, bool, error)
	CollectionMetadataSet(meta *CollectionMetadata) error
	TokenCountGet() (uint64, error)
	TokenCountSet(count uint64) error
	TokenOwnerGet(id uint64) ([20]byte, bool, error)
	TokenURIGet(id uint64) (string, error)
	MintApply(id uint64, owner [20]byte, uri string) error
	TransferApply(id uint64, to [20]byte) (int, error)
	ApprovalGet(id uint64, delegate [20]byte) (bool, error)
	ApprovalSet(id uint64, delegate [20]byte) error
	ListedGet(id uint64) (bool, error)
	RoyaltyGet() (uint32, bool, error)
	RoyaltySet(bps uint32) error
	RoyaltyRecipientGet() ([20]byte, bool, error)
	RoyaltyRecipientSet(addr [20]byte) error
	PlatformFeeGet() (uint32, bool, error)
	PlatformFeeSet(bps uint32) error
	PlatformAddressGet() ([20]byte, bool, error)
	PlatformAddressSet(addr [20]byte) error
}

// Engine wires the token registry business logic with persistence and event
// emission. It owns token identity, ownership, approvals, collection metadata,
// and the admin-gated fee configuration.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine constructs a registry engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// Initialize performs the one-time collection setup: administrator, metadata,
// fee configuration, and the zero supply counter. The administrator entry is
// written last; its presence marks a completed initialization, so a failed
// partial setup remains retryable instead of bricking the collection.
func (e *Engine) Initialize(ctx context.Context, params InitializeParams) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if _, ok, err := e.state.AdminGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if params.RoyaltyBps > maxBasisPoints || params.PlatformFeeBps > maxBasisPoints {
		return ErrInvalidFee
	}
	if err := auth.RequireAuth(ctx, params.Admin); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	meta := &CollectionMetadata{
		Name:        params.Name,
		Symbol:      params.Symbol,
		Description: params.Description,
		BaseURI:     params.BaseURI,
	}
	if err := e.state.CollectionMetadataSet(meta); err != nil {
		return err
	}
	if err := e.state.RoyaltySet(params.RoyaltyBps); err != nil {
		return err
	}
	if err := e.state.RoyaltyRecipientSet(params.RoyaltyRecipient); err != nil {
		return err
	}
	if err := e.state.PlatformFeeSet(params.PlatformFeeBps); err != nil {
		return err
	}
	if err := e.state.PlatformAddressSet(params.PlatformAddress); err != nil {
		return err
	}
	if err := e.state.TokenCountSet(0); err != nil {
		return err
	}
	if err := e.state.AdminSet(params.Admin); err != nil {
		return err
	}
	e.emit(events.CollectionInitialized{Admin: params.Admin, Name: params.Name, Symbol: params.Symbol})
	return nil
}

// Administrator returns the configured administrator address.
func (e *Engine) Administrator() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.administrator()
}

func (e *Engine) administrator() ([20]byte, error) {
	admin, ok, err := e.state.AdminGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrNotInitialized
	}
	return admin, nil
}

// IsAdmin reports whether the administrator is set and equals addr.
func (e *Engine) IsAdmin(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.isAdmin(addr)
}

func (e *Engine) isAdmin(addr [20]byte) (bool, error) {
	admin, err := e.administrator()
	if errors.Is(err, ErrNotInitialized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return admin == addr, nil
}

// requireAdmin performs the role check followed by the authentication step:
// addr must be the administrator AND must have authorized this call.
func (e *Engine) requireAdmin(ctx context.Context, addr [20]byte) error {
	ok, err := e.isAdmin(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	if err := auth.RequireAuth(ctx, addr); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// Metadata returns the collection metadata written at initialization.
func (e *Engine) Metadata() (*CollectionMetadata, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	meta, ok, err := e.state.CollectionMetadataGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return meta, nil
}

// FeeConfig returns the royalty and platform fee configuration, applying the
// protocol defaults where no value has been written yet.
func (e *Engine) FeeConfig() (RoyaltyConfig, PlatformFeeConfig, error) {
	if e == nil || e.state == nil {
		return RoyaltyConfig{}, PlatformFeeConfig{}, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	royalty := RoyaltyConfig{Bps: defaultRoyaltyBps}
	if bps, ok, err := e.state.RoyaltyGet(); err != nil {
		return RoyaltyConfig{}, PlatformFeeConfig{}, err
	} else if ok {
		royalty.Bps = bps
	}
	if addr, ok, err := e.state.RoyaltyRecipientGet(); err != nil {
		return RoyaltyConfig{}, PlatformFeeConfig{}, err
	} else if ok {
		royalty.Recipient = addr
	}
	platform := PlatformFeeConfig{Bps: defaultPlatformFeeBps}
	if bps, ok, err := e.state.PlatformFeeGet(); err != nil {
		return RoyaltyConfig{}, PlatformFeeConfig{}, err
	} else if ok {
		platform.Bps = bps
	}
	if addr, ok, err := e.state.PlatformAddressGet(); err != nil {
		return RoyaltyConfig{}, PlatformFeeConfig{}, err
	} else if ok {
		platform.Address = addr
	}
	return royalty, platform, nil
}

// TokenCount returns the supply counter, which is also the exclusive upper
// bound of valid token ids.
func (e *Engine) TokenCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.state.TokenCountGet()
}

// OwnerOf returns the current owner of the token.
func (e *Engine) OwnerOf(tokenID uint64) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.ownerOf(tokenID)
}

func (e *Engine) ownerOf(tokenID uint64) ([20]byte, error) {
	owner, ok, err := e.state.TokenOwnerGet(tokenID)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrTokenNotFound
	}
	return owner, nil
}

// Exists reports whether an ownership entry exists for the token id.
func (e *Engine) Exists(tokenID uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	_, ok, err := e.state.TokenOwnerGet(tokenID)
	return ok, err
}

// Token returns the {id, owner, uri} aggregate for a minted token.
func (e *Engine) Token(tokenID uint64) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.token(tokenID)
}

func (e *Engine) token(tokenID uint64) (*Token, error) {
	count, err := e.state.TokenCountGet()
	if err != nil {
		return nil, err
	}
	if tokenID >= count {
		return nil, ErrTokenNotFound
	}
	owner, err := e.ownerOf(tokenID)
	if err != nil {
		return nil, err
	}
	uri, err := e.state.TokenURIGet(tokenID)
	if err != nil {
		return nil, err
	}
	return &Token{TokenID: tokenID, Owner: owner, URI: uri}, nil
}

// TokensByOwner returns every token currently owned by owner. The scan is
// linear in total minted supply; there is no owner-keyed secondary index.
func (e *Engine) TokensByOwner(owner [20]byte) ([]*Token, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	count, err := e.state.TokenCountGet()
	if err != nil {
		return nil, err
	}
	tokens := make([]*Token, 0)
	for id := uint64(0); id < count; id++ {
		current, ok, err := e.state.TokenOwnerGet(id)
		if err != nil {
			return nil, err
		}
		if !ok || current != owner {
			continue
		}
		token, err := e.token(id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// TokenURI returns the URI for the token, defaulting to the empty string.
func (e *Engine) TokenURI(tokenID uint64) (string, error) {
	if e == nil || e.state == nil {
		return "", ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.state.TokenURIGet(tokenID)
}

// Mint assigns the next sequential token id to the recipient. The recipient
// must have authorized the call. The URI, ownership entry, and advanced supply
// counter land as one atomic write.
func (e *Engine) Mint(ctx context.Context, to [20]byte, uri string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if err := auth.RequireAuth(ctx, to); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.state.Lock()
	defer e.state.Unlock()
	count, err := e.state.TokenCountGet()
	if err != nil {
		return 0, err
	}
	tokenID := count
	if err := e.state.MintApply(tokenID, to, uri); err != nil {
		return 0, err
	}
	e.emit(events.TokenMinted{TokenID: tokenID, Owner: to, URI: uri})
	return tokenID, nil
}

// Transfer moves ownership of the token to the recipient. The caller acts as
// `from`, which must be either the current owner or a delegate holding an
// approval for the token. Listed tokens are frozen against ordinary transfer
// until the listing is removed.
func (e *Engine) Transfer(ctx context.Context, from, to [20]byte, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := auth.RequireAuth(ctx, from); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.state.Lock()
	defer e.state.Unlock()
	count, err := e.state.TokenCountGet()
	if err != nil {
		return err
	}
	if tokenID >= count {
		return ErrTokenNotFound
	}
	owner, err := e.ownerOf(tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		approved, err := e.state.ApprovalGet(tokenID, from)
		if err != nil {
			return err
		}
		if !approved {
			return ErrUnauthorized
		}
	}
	listed, err := e.state.ListedGet(tokenID)
	if err != nil {
		return err
	}
	if listed {
		return ErrTokenListed
	}
	cleared, err := e.state.TransferApply(tokenID, to)
	if err != nil {
		return err
	}
	e.emit(events.TokenTransferred{TokenID: tokenID, From: from, To: to})
	if cleared > 0 {
		e.emit(events.ApprovalsCleared{TokenID: tokenID, Cleared: cleared})
	}
	return nil
}

// Approve grants the delegate transfer rights for the token. Only the actual
// current owner may grant approvals.
func (e *Engine) Approve(ctx context.Context, owner, delegate [20]byte, tokenID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := auth.RequireAuth(ctx, owner); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.state.Lock()
	defer e.state.Unlock()
	current, err := e.ownerOf(tokenID)
	if err != nil {
		return err
	}
	if current != owner {
		return ErrNotTokenOwner
	}
	if err := e.state.ApprovalSet(tokenID, delegate); err != nil {
		return err
	}
	e.emit(events.TokenApproved{TokenID: tokenID, Owner: owner, Delegate: delegate})
	return nil
}

// IsApproved reports whether addr holds a transfer grant for the token.
func (e *Engine) IsApproved(tokenID uint64, addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	return e.state.ApprovalGet(tokenID, addr)
}

// UpdateRoyalty overwrites the royalty configuration. Admin only.
func (e *Engine) UpdateRoyalty(ctx context.Context, admin [20]byte, bps uint32, recipient [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if err := e.requireAdmin(ctx, admin); err != nil {
		return err
	}
	if bps > maxBasisPoints {
		return ErrInvalidFee
	}
	if err := e.state.RoyaltySet(bps); err != nil {
		return err
	}
	if err := e.state.RoyaltyRecipientSet(recipient); err != nil {
		return err
	}
	e.emit(events.RoyaltyUpdated{Bps: bps, Recipient: recipient})
	return nil
}

// UpdatePlatformFee overwrites the platform fee configuration. Admin only.
func (e *Engine) UpdatePlatformFee(ctx context.Context, admin [20]byte, bps uint32, address [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if err := e.requireAdmin(ctx, admin); err != nil {
		return err
	}
	if bps > maxBasisPoints {
		return ErrInvalidFee
	}
	if err := e.state.PlatformFeeSet(bps); err != nil {
		return err
	}
	if err := e.state.PlatformAddressSet(address); err != nil {
		return err
	}
	e.emit(events.PlatformFeeUpdated{Bps: bps, Address: address})
	return nil
}

// UpdateAdmin hands administrator control to newAdmin. Admin only.
func (e *Engine) UpdateAdmin(ctx context.Context, admin, newAdmin [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if err := e.requireAdmin(ctx, admin); err != nil {
		return err
	}
	if err := e.state.AdminSet(newAdmin); err != nil {
		return err
	}
	e.emit(events.AdminRotated{Previous: admin, Next: newAdmin})
	return nil
}
