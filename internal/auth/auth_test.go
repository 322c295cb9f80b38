package auth

import (
	"testing"

	"github.com/civicsafe/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &model.User{ID: 42, Email: "ops@civicsafe.test", Name: "Ops", Role: "MODERATOR"}

	token, err := GenerateAccessToken(user, "secret")
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token, "secret")
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)

	id, err := IdentityFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, id.Role)
	assert.Equal(t, "Ops", id.DisplayName)
	assert.True(t, id.IsStaff())

	_, err = ValidateAccessToken(token, "other-secret")
	assert.Error(t, err)
}

func TestIdentityFromClaimsRejectsUnknownRole(t *testing.T) {
	_, err := IdentityFromClaims(&Claims{UserID: 1, Role: "SUPERUSER"})
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("officer")
	assert.False(t, ok)
}

func TestIdentityHasRole(t *testing.T) {
	var anon *Identity
	assert.False(t, anon.IsStaff())
	assert.False(t, anon.HasRole(RoleUser))

	citizen := &Identity{ID: 1, Role: RoleUser}
	assert.False(t, citizen.IsStaff())
	assert.True(t, citizen.HasRole(RoleAdmin, RoleUser))
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword("", "anything"))
}

func TestGenerateRefreshToken(t *testing.T) {
	a, err := GenerateRefreshToken()
	require.NoError(t, err)
	b, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
