package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) (*Auth, *DB) {
	t.Helper()
	bcryptCost = bcrypt.MinCost
	db := openTestDB(t)
	return NewAuth(db, zap.NewNop()), db
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a, db := newTestAuth(t)

	id, token, err := a.Register("  zed  ", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	p, _ := db.GetPlayerByUsername("zed")
	require.NotNil(t, p, "usernames are trimmed")
	assert.Equal(t, id, p.ID)
	assert.NotEqual(t, "hunter2", p.PassHash)

	_, _, err = a.Register("zed", "another")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	gotID, token, err := a.Login("zed", "hunter2", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.PlayerID)
	assert.Equal(t, "zed", claims.Username)
	assert.False(t, claims.Guest)

	_, _, err = a.Login("zed", "wrong", "1.2.3.4")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = a.Login("nobody", "hunter2", "1.2.3.4")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthRegisterValidation(t *testing.T) {
	a, _ := newTestAuth(t)
	for name, tc := range map[string][2]string{
		"short name":   {"z", "password"},
		"long name":    {"abcdefghijklmnopq", "password"},
		"short pass":   {"valid", "abc"},
		"guest prefix": {"Guest_me", "password"},
	} {
		_, _, err := a.Register(tc[0], tc[1])
		assert.Error(t, err, name)
	}
}

func TestAuthGuest(t *testing.T) {
	a, db := newTestAuth(t)

	id, name, token, err := a.Guest()
	require.NoError(t, err)
	assert.Regexp(t, `^guest_[0-9a-f]{8}$`, name)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.Guest)
	assert.Equal(t, id, claims.PlayerID)

	_, _, err = a.Login(name, "", "5.6.7.8")
	assert.ErrorIs(t, err, ErrBadCredentials, "guests cannot log in with a password")

	stats, err := db.GetStats(id)
	require.NoError(t, err)
	assert.NotNil(t, stats, "guests get a stats row")
}

func TestAuthTokenExpiry(t *testing.T) {
	a, _ := newTestAuth(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	_, _, guestToken, err := a.Guest()
	require.NoError(t, err)
	_, token, err := a.Register("yan", "secret")
	require.NoError(t, err)

	now = now.Add(guestExpiry + time.Minute)
	_, err = a.ValidateToken(guestToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "guest tokens last a day")
	_, err = a.ValidateToken(token)
	assert.NoError(t, err)

	now = now.Add(jwtExpiry)
	_, err = a.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthRejectsForeignTokens(t *testing.T) {
	a, db := newTestAuth(t)
	_, token, err := a.Register("xia", "secret")
	require.NoError(t, err)

	other := NewAuth(openTestDB(t), zap.NewNop())
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "different secret")

	_, err = a.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	again := NewAuth(db, zap.NewNop())
	_, err = again.ValidateToken(token)
	assert.NoError(t, err, "the secret persists in settings")
}

func TestAuthLoginRateLimit(t *testing.T) {
	a, _ := newTestAuth(t)
	now := time.Now()
	a.now = func() time.Time { return now }

	for i := 0; i < maxLoginAttempts; i++ {
		_, _, err := a.Login("nobody", "x", "9.9.9.9")
		require.ErrorIs(t, err, ErrBadCredentials)
	}
	_, _, err := a.Login("nobody", "x", "9.9.9.9")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, _, err = a.Login("nobody", "x", "8.8.8.8")
	assert.ErrorIs(t, err, ErrBadCredentials, "limits are per address")

	now = now.Add(loginRateWindow + time.Second)
	_, _, err = a.Login("nobody", "x", "9.9.9.9")
	assert.ErrorIs(t, err, ErrBadCredentials, "window resets")
}
