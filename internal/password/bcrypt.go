package password

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

const AlgorithmBcrypt = "bcrypt"

// Bcrypt hashes passwords with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	Cost int
}

var _ Hasher = (*Bcrypt)(nil)

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{Cost: cost}
}

func (b *Bcrypt) Algorithm() string {
	return AlgorithmBcrypt
}

func (b *Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify password: %w", err)
}

// Summary splits "$2b$<cost>$<22 char salt><31 char checksum>".
func (b *Bcrypt) Summary(encoded string) []SummaryItem {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil || len(encoded) != 60 {
		return []SummaryItem{{Value: "Invalid password format or unknown hashing algorithm."}}
	}
	body := encoded[7:]
	return []SummaryItem{
		{Label: "algorithm", Value: AlgorithmBcrypt},
		{Label: "work factor", Value: strconv.Itoa(cost)},
		{Label: "salt", Value: mask(body[:22], 6)},
		{Label: "checksum", Value: mask(body[22:], 6)},
	}
}
