package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alecgard/ovpnadmin/internal/crypto"
	"github.com/alecgard/ovpnadmin/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenSlotName is the fixed key of the bearer-token mirror.
	TokenSlotName = "ovpnadmin-token"

	// TokenTTL is the fixed lifetime of the token slot.
	TokenTTL = 7 * 24 * time.Hour
)

// TokenSlot is the cookie-like bearer-token mirror read by the gateway
// client. Values expire TokenTTL after they are written.
type TokenSlot struct {
	kv     storage.KV
	cipher *crypto.Cipher
	now    func() time.Time
}

// NewTokenSlot creates a slot in kv, sealing values with cipher when set.
func NewTokenSlot(kv storage.KV, cipher *crypto.Cipher) *TokenSlot {
	return &TokenSlot{kv: kv, cipher: cipher, now: time.Now}
}

// Set stores token with a fresh 7-day expiry.
func (t *TokenSlot) Set(ctx context.Context, token string) error {
	sealed, err := t.cipher.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}
	if err := t.kv.Set(ctx, TokenSlotName, sealed, t.now().Add(TokenTTL)); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Get returns the stored token, or "" when the slot is empty or expired.
func (t *TokenSlot) Get(ctx context.Context) (string, error) {
	raw, err := t.kv.Get(ctx, TokenSlotName)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	plain, err := t.cipher.Open(raw)
	if err != nil {
		return "", fmt.Errorf("opening token: %w", err)
	}
	return string(plain), nil
}

// present reports whether the slot holds a value, readable or not. Lookup
// errors count as present so callers still attempt a delete.
func (t *TokenSlot) present(ctx context.Context) bool {
	_, err := t.kv.Get(ctx, TokenSlotName)
	return !errors.Is(err, storage.ErrNotFound)
}

// Clear removes the slot.
func (t *TokenSlot) Clear(ctx context.Context) error {
	if err := t.kv.Delete(ctx, TokenSlotName); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// TokenExpiry reads the exp claim of a JWT bearer token without verifying
// its signature. Opaque tokens report ok=false.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
