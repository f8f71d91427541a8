package auth

import (
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const maxVerifierLen = 128

// NewVerifier returns a PKCE code verifier: 32 random octets,
// base64url-encoded, clamped to the RFC 7636 length ceiling.
func NewVerifier() string {
	v := oauth2.GenerateVerifier()
	if len(v) > maxVerifierLen {
		v = v[:maxVerifierLen]
	}
	return v
}

// PlainChallenge derives the code challenge for the plain PKCE method
func PlainChallenge(verifier string) string {
	return verifier
}

// NewState returns a fresh CSRF nonce for an authorization request
func NewState() string {
	return uuid.NewString()
}
