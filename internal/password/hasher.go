package password

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"account-console/internal/domain"
)

// Hasher turns plaintext passwords into one-way encoded hashes.
type Hasher interface {
	Algorithm() string
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	Summary(encoded string) []SummaryItem
}

// SummaryItem is one labelled, masked component of an encoded hash.
type SummaryItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

const noPasswordSet = "No password set."

// Registry hashes with a primary algorithm and verifies against any registered one.
type Registry struct {
	primary Hasher
	byAlgo  map[string]Hasher
}

var _ Hasher = (*Registry)(nil)

func NewRegistry(primary Hasher, others ...Hasher) *Registry {
	r := &Registry{
		primary: primary,
		byAlgo:  map[string]Hasher{primary.Algorithm(): primary},
	}
	for _, h := range others {
		r.byAlgo[h.Algorithm()] = h
	}
	return r
}

func (r *Registry) Algorithm() string {
	return r.primary.Algorithm()
}

func (r *Registry) Hash(password string) (string, error) {
	return r.primary.Hash(password)
}

// Verify checks password against encoded. Unusable markers never verify.
func (r *Registry) Verify(password, encoded string) (bool, error) {
	if !IsUsable(encoded) {
		return false, nil
	}
	h, ok := r.byAlgo[Identify(encoded)]
	if !ok {
		return false, fmt.Errorf("unknown password hashing algorithm")
	}
	return h.Verify(password, encoded)
}

func (r *Registry) Summary(encoded string) []SummaryItem {
	if !IsUsable(encoded) {
		return []SummaryItem{{Value: noPasswordSet}}
	}
	h, ok := r.byAlgo[Identify(encoded)]
	if !ok {
		return []SummaryItem{{Value: "Invalid password format or unknown hashing algorithm."}}
	}
	return h.Summary(encoded)
}

// Identify returns the algorithm name encoded in the hash prefix, or "".
func Identify(encoded string) string {
	switch {
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return AlgorithmBcrypt
	case strings.HasPrefix(encoded, "$argon2id$"):
		return AlgorithmArgon2id
	default:
		return ""
	}
}

// IsUsable reports whether encoded could ever verify a password.
func IsUsable(encoded string) bool {
	return encoded != "" && !strings.HasPrefix(encoded, domain.UnusablePasswordPrefix)
}

// MakeUnusable returns a random marker that no password verifies against.
func MakeUnusable() (string, error) {
	buf := make([]byte, 30)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate unusable password: %w", err)
	}
	return domain.UnusablePasswordPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// mask keeps the first show characters of s and stars out the rest.
func mask(s string, show int) string {
	if show > len(s) {
		show = len(s)
	}
	return s[:show] + strings.Repeat("*", len(s)-show)
}

// New builds a Registry hashing with the named algorithm and verifying every supported one.
func New(algorithm string, bcryptCost int) (*Registry, error) {
	bc := NewBcrypt(bcryptCost)
	ar := NewArgon2()
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewRegistry(bc, ar), nil
	case AlgorithmArgon2id:
		return NewRegistry(ar, bc), nil
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", algorithm)
	}
}
