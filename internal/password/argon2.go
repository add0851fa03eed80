// Package password hashes and verifies user passwords with Argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm = "argon2id"

	minMemoryKiB uint32 = 8 * 1024
	saltLength   uint32 = 16
	keyLength    uint32 = 32
)

var errMalformedHash = errors.New("malformed password hash")

// Params are the Argon2id cost parameters.
type Params struct {
	Time   uint32
	MemKiB uint32
	Par    uint8
}

// Argon2 produces PHC-formatted Argon2id hashes.
type Argon2 struct {
	params Params
}

// NewArgon2 validates params and returns a hasher.
func NewArgon2(params Params) (*Argon2, error) {
	if params.Time < 1 {
		return nil, fmt.Errorf("argon2 time must be >= 1, got %d", params.Time)
	}
	if params.MemKiB < minMemoryKiB {
		return nil, fmt.Errorf("argon2 memory must be >= %d KiB, got %d", minMemoryKiB, params.MemKiB)
	}
	if params.Par < 1 {
		return nil, fmt.Errorf("argon2 parallelism must be >= 1, got %d", params.Par)
	}
	return &Argon2{params: params}, nil
}

// Hash returns an encoded hash with a fresh random salt:
// $argon2id$v=19$m=<mem>,t=<time>,p=<par>$<salt>$<key>
func (a *Argon2) Hash(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.params.Time, a.params.MemKiB, a.params.Par, keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		a.params.MemKiB, a.params.Time, a.params.Par,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches encoded. A malformed hash never matches.
func (a *Argon2) Verify(plaintext, encoded string) bool {
	h, err := decode(encoded)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(plaintext), h.salt, h.params.Time, h.params.MemKiB, h.params.Par, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the hasher's current ones.
func (a *Argon2) NeedsUpgrade(encoded string) bool {
	h, err := decode(encoded)
	if err != nil {
		return true
	}
	return h.params.MemKiB < a.params.MemKiB ||
		h.params.Time < a.params.Time ||
		h.params.Par < a.params.Par ||
		uint32(len(h.key)) != keyLength
}

type decoded struct {
	params Params
	salt   []byte
	key    []byte
}

func decode(encoded string) (decoded, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return decoded{}, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return decoded{}, errMalformedHash
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemKiB, &p.Time, &p.Par); err != nil {
		return decoded{}, errMalformedHash
	}
	if p.Time < 1 || p.Par < 1 || p.MemKiB < minMemoryKiB {
		return decoded{}, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(saltLength) {
		return decoded{}, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return decoded{}, errMalformedHash
	}

	return decoded{params: p, salt: salt, key: key}, nil
}
