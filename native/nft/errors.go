package nft

import "errors"

var (
	ErrNilState           = errors.New("nft engine: state not configured")
	ErrAlreadyInitialized = errors.New("nft engine: already initialized")
	ErrNotInitialized     = errors.New("nft engine: not initialized")
	ErrInvalidFee         = errors.New("nft engine: invalid fee percentage")
	ErrUnauthorized       = errors.New("nft engine: unauthorized")
	ErrTokenNotFound      = errors.New("nft engine: token not found")
	ErrNotTokenOwner      = errors.New("nft engine: not token owner")
	ErrTokenListed        = errors.New("nft engine: token is listed for sale")
)
