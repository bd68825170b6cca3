package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

func TestIdentityServiceRoundTrip(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "secret", Issuer: "lms", Expiry: time.Hour})

	token, expires, err := svc.IssueToken("principal-1", "Ada")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "principal-1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
}

func TestIdentityServiceRejectsForeignTokens(t *testing.T) {
	issuer := NewIdentityService(IdentityConfig{Secret: "other", Issuer: "lms"})
	token, _, err := issuer.IssueToken("principal-1", "")
	require.NoError(t, err)

	svc := NewIdentityService(IdentityConfig{Secret: "secret", Issuer: "lms"})
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotAuthenticated))

	wrongIssuer := NewIdentityService(IdentityConfig{Secret: "secret", Issuer: "elsewhere"})
	token, _, err = wrongIssuer.IssueToken("principal-1", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestIdentityServiceExpiredToken(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "secret", Expiry: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.IssueToken("principal-1", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestIdentityServiceRejectsAnonymous(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "secret"})
	_, _, err := svc.IssueToken("anonymous", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
