package application

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE (RFC 7636) verifier/challenge helpers. Pure functions, no side
// effects beyond reading entropy.

// PKCEMethodS256 is the only accepted code challenge method. Verification
// fails closed for anything else, including "plain".
const PKCEMethodS256 = "S256"

const (
	minPKCELength = 43
	maxPKCELength = 128
)

// GeneratePKCEVerifier returns a high-entropy code verifier: 43 chars of
// the URL-safe alphabet from 256 bits of randomness.
func GeneratePKCEVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// PKCEChallengeFor returns the S256 challenge for a verifier: the
// URL-safe base64 encoding of its SHA-256 digest.
func PKCEChallengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE recomputes the challenge from the verifier and compares.
// Only S256 is accepted; any other method fails closed.
func VerifyPKCE(verifier, challenge, method string) bool {
	if method != PKCEMethodS256 {
		return false
	}
	if !ValidPKCEVerifier(verifier) || !ValidPKCEChallenge(challenge) {
		return false
	}
	expected := PKCEChallengeFor(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}

// ValidPKCEVerifier reports whether the verifier is 43-128 chars of the
// RFC 7636 unreserved alphabet.
func ValidPKCEVerifier(verifier string) bool {
	return validPKCEString(verifier)
}

// ValidPKCEChallenge reports whether the challenge is 43-128 chars of
// the RFC 7636 unreserved alphabet.
func ValidPKCEChallenge(challenge string) bool {
	return validPKCEString(challenge)
}

func validPKCEString(s string) bool {
	if len(s) < minPKCELength || len(s) > maxPKCELength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}
