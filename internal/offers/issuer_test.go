package offers

import (
	"testing"
	"time"

	"hostly/internal/shared/apperr"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func notifiedState(o Offer) State {
	expires := o.ExpiresAt
	return State{Notified: true, TokenHash: o.TokenHash, ExpiresAt: &expires}
}

func TestIssue(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	issuer := NewIssuer(clock, 0)

	offer, err := issuer.Issue()
	require.NoError(t, err)

	assert.Equal(t, DefaultWindow, issuer.Window())
	assert.Equal(t, epoch, offer.IssuedAt)
	assert.Equal(t, epoch.Add(12*time.Hour), offer.ExpiresAt)
	assert.Len(t, offer.Token, 43)
	assert.Equal(t, HashToken(offer.Token), offer.TokenHash)
	assert.NotContains(t, offer.TokenHash, offer.Token)

	other, err := issuer.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, offer.Token, other.Token)
}

func TestValidate_ExpiryBoundary(t *testing.T) {
	const eps = time.Millisecond

	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{"just before expiry", 12*time.Hour - eps, nil},
		{"at expiry", 12 * time.Hour, apperr.ErrOfferExpired},
		{"just after expiry", 12*time.Hour + eps, apperr.ErrOfferExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClockAt(epoch)
			issuer := NewIssuer(clock, 12*time.Hour)
			offer, err := issuer.Issue()
			require.NoError(t, err)

			clock.Advance(tt.advance)
			err = issuer.Validate(notifiedState(offer), offer.Token)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	issuer := NewIssuer(clock, time.Hour)
	offer, err := issuer.Issue()
	require.NoError(t, err)

	state := notifiedState(offer)

	assert.ErrorIs(t, issuer.Validate(state, "wrong"), apperr.ErrOfferInvalid)
	assert.ErrorIs(t, issuer.Validate(state, ""), apperr.ErrOfferInvalid)

	notNotified := state
	notNotified.Notified = false
	assert.ErrorIs(t, issuer.Validate(notNotified, offer.Token), apperr.ErrOfferInvalid)

	// A wrong token never reports expiry
	clock.Advance(2 * time.Hour)
	assert.ErrorIs(t, issuer.Validate(state, "wrong"), apperr.ErrOfferInvalid)
}

func TestRemainingTime(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	issuer := NewIssuer(clock, time.Hour)
	expires := epoch.Add(time.Hour)

	assert.Equal(t, time.Hour, issuer.RemainingTime(expires))
	clock.Advance(45 * time.Minute)
	assert.Equal(t, 15*time.Minute, issuer.RemainingTime(expires))
	clock.Advance(time.Hour)
	assert.Equal(t, time.Duration(0), issuer.RemainingTime(expires))
}
