package auth

import (
	"context"
	"errors"
	"testing"
)

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestRequireAuth(t *testing.T) {
	ctx := WithAuthorized(context.Background(), addr(0x01))
	if err := RequireAuth(ctx, addr(0x01)); err != nil {
		t.Fatalf("granted address rejected: %v", err)
	}
	if err := RequireAuth(ctx, addr(0x02)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := RequireAuth(context.Background(), addr(0x01)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on bare context, got %v", err)
	}
}

func TestGrantsAccumulate(t *testing.T) {
	ctx := WithAuthorized(context.Background(), addr(0x01))
	ctx = WithAuthorized(ctx, addr(0x02))
	for _, granted := range [][20]byte{addr(0x01), addr(0x02)} {
		if err := RequireAuth(ctx, granted); err != nil {
			t.Fatalf("accumulated grant for %x rejected: %v", granted, err)
		}
	}
}
