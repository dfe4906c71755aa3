package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const AlgorithmArgon2id = "argon2id"

// Argon2 hashes passwords with argon2id and encodes them in PHC string form.
type Argon2 struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32 // ignored by Verify
	KeyLength   uint32
}

var _ Hasher = (*Argon2)(nil)

// NewArgon2 uses the OWASP argon2id baseline.
//
// @ref https://cheatsheetseries.owasp.org/cheatsheets/Password_Storage_Cheat_Sheet.html
func NewArgon2() *Argon2 {
	return &Argon2{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (a *Argon2) Algorithm() string {
	return AlgorithmArgon2id
}

func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.Iterations, a.Memory, a.Parallelism, a.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.Memory,
		a.Iterations,
		a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

func (a *Argon2) Summary(encoded string) []SummaryItem {
	params, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return []SummaryItem{{Value: "Invalid password format or unknown hashing algorithm."}}
	}
	parts := strings.Split(encoded, "$")
	return []SummaryItem{
		{Label: "algorithm", Value: AlgorithmArgon2id},
		{Label: "version", Value: strings.TrimPrefix(parts[2], "v=")},
		{Label: "memory cost", Value: strconv.FormatUint(uint64(params.Memory), 10)},
		{Label: "time cost", Value: strconv.FormatUint(uint64(params.Iterations), 10)},
		{Label: "parallelism", Value: strconv.Itoa(int(params.Parallelism))},
		{Label: "salt", Value: mask(base64.RawStdEncoding.EncodeToString(salt), 6)},
		{Label: "hash", Value: mask(base64.RawStdEncoding.EncodeToString(key), 6)},
	}
}

func decodeArgon2(encoded string) (*Argon2, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, nil, errors.New("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return nil, nil, nil, errors.New("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("incompatible argon2 version %d", version)
	}

	params := &Argon2{}
	var p int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p < 1 || p > 255 {
		return nil, nil, nil, fmt.Errorf("invalid parallelism %d", p)
	}
	if params.Iterations < 1 {
		return nil, nil, nil, errors.New("invalid time cost 0")
	}
	if params.Memory < 8*uint32(p) {
		return nil, nil, nil, fmt.Errorf("invalid memory cost %d", params.Memory)
	}
	params.Parallelism = uint8(p)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid hash encoding: %w", err)
	}
	if len(salt) == 0 || len(key) == 0 {
		return nil, nil, nil, errors.New("empty salt or hash")
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}
