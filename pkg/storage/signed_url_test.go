package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("assignments/abc/hw1.pdf")
	require.NoError(t, err)
	require.False(t, expiresAt.IsZero())

	ref, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "assignments/abc/hw1.pdf", ref)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Sign("submissions/1/a.txt")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	other, _, err := signer.Sign("submissions/2/b.txt")
	require.NoError(t, err)
	forged := strings.Split(other, ".")[0] + "." + parts[1] + "." + parts[2]

	_, err = signer.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSignedURLSigner("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Now()
	signer.now = func() time.Time { return base }
	token, _, err := signer.Sign("a/b")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
