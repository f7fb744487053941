// Package offers issues and validates the single use tokens that let a
// waitlisted guest claim seats held for them.
package offers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"hostly/internal/shared/apperr"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/blake2b"
)

const (
	DefaultWindow = 12 * time.Hour
	tokenBytes    = 32
)

// Offer is a freshly issued token. Only TokenHash is persisted; Token goes
// out in the offer notification and is never stored.
type Offer struct {
	Token     string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// State is what a waitlist entry exposes for validation
type State struct {
	Notified  bool
	TokenHash string
	ExpiresAt *time.Time
}

type Issuer struct {
	clock  clockwork.Clock
	window time.Duration
}

func NewIssuer(clock clockwork.Clock, window time.Duration) *Issuer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Issuer{clock: clock, window: window}
}

func (i *Issuer) Window() time.Duration {
	return i.window
}

func (i *Issuer) Now() time.Time {
	return i.clock.Now().UTC()
}

// Issue generates a new token expiring one window from now
func (i *Issuer) Issue() (Offer, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Offer{}, fmt.Errorf("generate offer token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	now := i.Now()
	return Offer{
		Token:     token,
		TokenHash: HashToken(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.window),
	}, nil
}

// Validate checks a presented token against the stored state. A wrong or
// missing token is ErrOfferInvalid even when the offer has also lapsed.
func (i *Issuer) Validate(state State, token string) error {
	if !state.Notified || state.TokenHash == "" || state.ExpiresAt == nil {
		return fmt.Errorf("no outstanding offer: %w", apperr.ErrOfferInvalid)
	}
	if token == "" || !hashesEqual(HashToken(token), state.TokenHash) {
		return fmt.Errorf("token does not match: %w", apperr.ErrOfferInvalid)
	}
	if i.IsExpired(*state.ExpiresAt) {
		return fmt.Errorf("offer expired at %s: %w", state.ExpiresAt.UTC().Format(time.RFC3339), apperr.ErrOfferExpired)
	}
	return nil
}

// IsExpired treats the expiry instant itself as expired
func (i *Issuer) IsExpired(expiresAt time.Time) bool {
	return !i.Now().Before(expiresAt)
}

// RemainingTime is expiresAt minus now, never negative
func (i *Issuer) RemainingTime(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(i.Now())
	if d < 0 {
		return 0
	}
	return d
}

// HashToken returns the hex blake2b-256 digest stored in place of the token
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func hashesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
