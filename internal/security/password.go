package security

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

const (
	hashTime    uint32 = 3
	hashMemory  uint32 = 64 * 1024
	hashThreads uint8  = 2
	hashKeyLen  uint32 = 32
	hashSaltLen        = 16
)

var ErrInvalidHash = errors.New("invalid password hash")

// HashPassword returns an argon2id hash including parameters and salt,
// in the conventional $argon2id$... encoding.
func HashPassword(password string) ([]byte, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemory,
		hashTime,
		hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	)
	return []byte(encoded), nil
}

// VerifyPassword checks a candidate password against a stored hash. It
// reads the parameters out of the hash itself so old records keep
// verifying after cost changes.
func VerifyPassword(password string, encodedHash []byte) (bool, error) {
	parts := strings.Split(string(encodedHash), "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrInvalidHash
	}

	mem, timeCost, threads, err := parseHashParams(parts[3])
	if err != nil {
		return false, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidHash
	}

	actual := argon2.IDKey([]byte(password), salt, timeCost, mem, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func parseHashParams(value string) (mem uint32, timeCost uint32, threads uint8, err error) {
	fields := strings.Split(value, ",")
	if len(fields) != 3 {
		return 0, 0, 0, ErrInvalidHash
	}

	parse := func(field, prefix string) (uint64, error) {
		if !strings.HasPrefix(field, prefix) {
			return 0, ErrInvalidHash
		}
		return strconv.ParseUint(strings.TrimPrefix(field, prefix), 10, 32)
	}

	m, err := parse(fields[0], "m=")
	if err != nil {
		return 0, 0, 0, ErrInvalidHash
	}
	t, err := parse(fields[1], "t=")
	if err != nil {
		return 0, 0, 0, ErrInvalidHash
	}
	p, err := parse(fields[2], "p=")
	if err != nil || p > 255 {
		return 0, 0, 0, ErrInvalidHash
	}
	return uint32(m), uint32(t), uint8(p), nil
}
