// Package wallet derives and holds the custodial wallet's signing key.
// The key lives in process memory only and is never written to the
// ledger store.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const phraseWordCount = 24

// ErrInvalidPhrase is returned for any recovery phrase that does not
// pass full validation. A bad phrase is a configuration error, so there
// is no best-effort recovery here.
var ErrInvalidPhrase = errors.New("wallet: invalid recovery phrase")

// Keypair is the wallet's Ed25519 signing keypair.
type Keypair struct {
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// Derive validates the recovery phrase and derives the signing keypair.
// Validation fails closed: wrong word count, a token outside the
// wordlist, or a checksum mismatch all reject the phrase outright.
func Derive(recoveryPhrase string) (*Keypair, error) {
	words, err := normalizePhrase(recoveryPhrase)
	if err != nil {
		return nil, err
	}
	phrase := strings.Join(words, " ")

	if !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidPhrase)
	}

	seed := bip39.NewSeed(phrase, "")
	key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return &Keypair{
		PublicKey:  key.Public().(ed25519.PublicKey),
		privateKey: key,
	}, nil
}

// Sign signs data with the wallet key. No other side effects.
func (k *Keypair) Sign(data []byte) []byte {
	return ed25519.Sign(k.privateKey, data)
}

// normalizePhrase strips wrapping quotes (deploy tooling tends to leave
// them on env values), collapses whitespace, and checks every word
// against the wordlist.
func normalizePhrase(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	for len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	words := strings.Fields(strings.ToLower(s))
	if len(words) != phraseWordCount {
		return nil, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidPhrase, phraseWordCount, len(words))
	}

	wordlist := bip39.GetWordList()
	known := make(map[string]bool, len(wordlist))
	for _, w := range wordlist {
		known[w] = true
	}
	for _, w := range words {
		if !known[w] {
			return nil, fmt.Errorf("%w: word %q is not in the wordlist", ErrInvalidPhrase, w)
		}
	}
	return words, nil
}
