package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole(" Instructor ")
	require.NoError(t, err)
	assert.Equal(t, RoleInstructor, role)

	_, err = ParseUserRole("admin")
	assert.Error(t, err)
	_, err = ParseUserRole("")
	assert.Error(t, err)
}

func TestUserRoleValid(t *testing.T) {
	assert.True(t, RoleStudent.Valid())
	assert.True(t, RoleInstructor.Valid())
	assert.False(t, UserRole("STUDENT").Valid())
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	token := &RefreshToken{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, token.Usable(now))
	assert.False(t, token.Usable(now.Add(time.Minute)))

	token.Revoked = true
	assert.False(t, token.Usable(now))

	var missing *RefreshToken
	assert.False(t, missing.Usable(now))
}
