package market

import "errors"

var (
	ErrNilState      = errors.New("market engine: state not configured")
	ErrNilPayments   = errors.New("market engine: payment engine not configured")
	ErrUnauthorized  = errors.New("market engine: unauthorized")
	ErrTokenNotFound = errors.New("market engine: token not found")
	ErrNotTokenOwner = errors.New("market engine: not token owner")
	ErrAlreadyListed = errors.New("market engine: token already listed")
	ErrNotListed     = errors.New("market engine: token not listed")
	ErrInvalidPrice  = errors.New("market engine: price must be positive")
	ErrSelfPurchase  = errors.New("market engine: cannot buy your own token")
	ErrPaymentFailed = errors.New("market engine: payment settlement failed")
)
