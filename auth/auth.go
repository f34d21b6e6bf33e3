// Package auth carries per-call caller authorization. The transport layer
// proves which addresses consented to an invocation (for JSON-RPC, by
// recovering a signature over the call digest) and grants them on the request
// context; engines then demand the grant for the specific address an operation
// claims to act as.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when the named address did not authorize the
// current call.
var ErrUnauthorized = errors.New("auth: address did not authorize this call")

type ctxKey struct{}

type grantSet map[[20]byte]struct{}

// WithAuthorized returns a context carrying authorization grants for the
// supplied addresses, in addition to any grants already present.
func WithAuthorized(ctx context.Context, addrs ...[20]byte) context.Context {
	if len(addrs) == 0 {
		return ctx
	}
	grants := make(grantSet, len(addrs))
	if existing, ok := ctx.Value(ctxKey{}).(grantSet); ok {
		for addr := range existing {
			grants[addr] = struct{}{}
		}
	}
	for _, addr := range addrs {
		grants[addr] = struct{}{}
	}
	return context.WithValue(ctx, ctxKey{}, grants)
}

// RequireAuth fails with ErrUnauthorized unless addr holds a grant on ctx.
func RequireAuth(ctx context.Context, addr [20]byte) error {
	grants, ok := ctx.Value(ctxKey{}).(grantSet)
	if !ok {
		return ErrUnauthorized
	}
	if _, ok := grants[addr]; !ok {
		return ErrUnauthorized
	}
	return nil
}
