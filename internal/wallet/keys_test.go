package wallet

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"
)

// 24-word mnemonic with a valid checksum.
const validPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

func TestDeriveValidPhrase(t *testing.T) {
	kp, err := Derive(validPhrase)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if len(kp.PublicKey) != ed25519.PublicKeySize {
		t.Errorf("public key size = %d, want %d", len(kp.PublicKey), ed25519.PublicKeySize)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	a, err := Derive(validPhrase)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	b, err := Derive(validPhrase)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if !a.PublicKey.Equal(b.PublicKey) {
		t.Error("same phrase derived different keys")
	}
}

func TestDeriveNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"wrapping double quotes", `"` + validPhrase + `"`},
		{"wrapping single quotes", "'" + validPhrase + "'"},
		{"extra whitespace", "  " + strings.ReplaceAll(validPhrase, " ", "   ") + "  "},
		{"mixed case", strings.ToUpper(validPhrase)},
	}
	want, err := Derive(validPhrase)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp, err := Derive(tt.in)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			if !kp.PublicKey.Equal(want.PublicKey) {
				t.Error("normalized phrase derived a different key")
			}
		})
	}
}

func TestDeriveRejectsBadPhrases(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"wrong word count", "abandon abandon abandon"},
		{"word outside wordlist", strings.Replace(validPhrase, "art", "blockchainz", 1)},
		{"bad checksum", strings.Replace(validPhrase, "art", "zoo", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Derive(tt.in); !errors.Is(err, ErrInvalidPhrase) {
				t.Errorf("Derive error = %v, want ErrInvalidPhrase", err)
			}
		})
	}
}

func TestSignVerifies(t *testing.T) {
	kp, err := Derive(validPhrase)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	msg := []byte("settlement test message")
	sig := kp.Sign(msg)
	if !ed25519.Verify(kp.PublicKey, msg, sig) {
		t.Error("signature does not verify against the public key")
	}
}
