package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner issues short-lived download tokens for stored blobs.
// A token is "<b64 ref>.<unix expiry>.<b64 hmac>".
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting read access to ref until the returned expiry.
func (s *SignedURLSigner) Sign(ref string) (string, time.Time, error) {
	if ref == "" {
		return "", time.Time{}, fmt.Errorf("blob reference required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedRef := base64.RawURLEncoding.EncodeToString([]byte(ref))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	sig := s.mac(encodedRef, exp)
	return strings.Join([]string{encodedRef, exp, sig}, "."), expiresAt, nil
}

// Verify checks the signature and expiry, returning the blob reference.
func (s *SignedURLSigner) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	encodedRef, exp, sig := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.mac(encodedRef, exp)), []byte(sig)) {
		return "", ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrTokenExpired
	}
	ref, err := base64.RawURLEncoding.DecodeString(encodedRef)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(ref), nil
}

func (s *SignedURLSigner) mac(encodedRef, exp string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(encodedRef + "|" + exp))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
