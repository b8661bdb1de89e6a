// internal/auth/session_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	Init()

	token, err := CreateJWT("user-123", "Alice")
	require.NoError(t, err)

	ident, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", ident.ID)
	assert.Equal(t, "Alice", ident.Name)
	assert.False(t, ident.Guest)
}

func TestAuthenticateJWTRejectsGarbage(t *testing.T) {
	Init()

	_, err := AuthenticateJWT("not.a.token")
	assert.Error(t, err)
}

func TestAuthenticateJWTRejectsForeignKey(t *testing.T) {
	Init()
	token, err := CreateJWT("user-123", "Alice")
	require.NoError(t, err)

	// Rotate the key pair; tokens signed by the old key must fail.
	Init()
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestIdentifyFromCookie(t *testing.T) {
	Init()
	token, err := CreateJWT("user-123", "Alice")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/lobby/ws", nil)
	r.AddCookie(&http.Cookie{Name: "auth_token", Value: token})

	ident, err := Identify(r)
	require.NoError(t, err)
	assert.Equal(t, "user-123", ident.ID)
}

func TestIdentifyFromQueryParam(t *testing.T) {
	Init()
	token, err := CreateJWT("user-456", "Bob")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/lobby/ws?token="+token, nil)
	ident, err := Identify(r)
	require.NoError(t, err)
	assert.Equal(t, "user-456", ident.ID)
	assert.Equal(t, "Bob", ident.Name)
}

func TestIdentifyGuestFallback(t *testing.T) {
	Init()

	r := httptest.NewRequest(http.MethodGet, "/lobby/ws", nil)
	ident, err := Identify(r)
	require.NoError(t, err)
	assert.True(t, ident.Guest)
	assert.True(t, strings.HasPrefix(ident.ID, "guest_"))

	// Each anonymous request gets a distinct identity.
	other, err := Identify(r)
	require.NoError(t, err)
	assert.NotEqual(t, ident.ID, other.ID)
}

func TestIdentifyRejectsBadToken(t *testing.T) {
	Init()

	r := httptest.NewRequest(http.MethodGet, "/lobby/ws?token=bogus", nil)
	_, err := Identify(r)
	assert.ErrorIs(t, err, ErrAuthFailed)
}
