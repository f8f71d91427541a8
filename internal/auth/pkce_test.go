package auth

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
)

var verifierCharset = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

func TestNewVerifier(t *testing.T) {
	t.Parallel()

	v := NewVerifier()
	if len(v) == 0 || len(v) > maxVerifierLen {
		t.Fatalf("verifier length = %d, want 1..%d", len(v), maxVerifierLen)
	}
	if !verifierCharset.MatchString(v) {
		t.Errorf("verifier %q contains characters outside the RFC 7636 set", v)
	}
	if NewVerifier() == v {
		t.Error("verifiers must be random")
	}
}

func TestPlainChallenge(t *testing.T) {
	t.Parallel()

	if got := PlainChallenge("abc"); got != "abc" {
		t.Errorf("PlainChallenge = %q, want the verifier itself", got)
	}
}

func TestNewState(t *testing.T) {
	t.Parallel()

	s := NewState()
	if _, err := uuid.Parse(s); err != nil {
		t.Errorf("state %q is not a UUID: %v", s, err)
	}
	if NewState() == s {
		t.Error("states must be random")
	}
}
