// Package auth issues access tokens and hashes user passwords.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 6

// hashCost holds the argon2id work factors stored alongside each hash.
type hashCost struct {
	memoryKiB uint32
	passes    uint32
	lanes     uint8
}

var (
	defaultCost = hashCost{memoryKiB: 64 * 1024, passes: 1, lanes: 4}
	b64         = base64.RawStdEncoding
)

const (
	saltBytes = 16
	keyBytes  = 32
)

var errMalformedHash = errors.New("malformed password hash")

// HashPassword returns a PHC string:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	c := defaultCost
	key := argon2.IDKey([]byte(password), salt, c.passes, c.memoryKiB, c.lanes, keyBytes)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, c.memoryKiB, c.passes, c.lanes, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword recomputes the key with the stored cost and salt and
// compares in constant time. A malformed hash is an error, a wrong
// password is not.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, want, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, cost.passes, cost.memoryKiB, cost.lanes, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parseHash(encoded string) (hashCost, []byte, []byte, error) {
	// A leading "$" yields an empty first field.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return hashCost{}, nil, nil, errMalformedHash
	}
	if fields[1] != "argon2id" {
		return hashCost{}, nil, nil, fmt.Errorf("%w: algorithm %q", errMalformedHash, fields[1])
	}
	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return hashCost{}, nil, nil, fmt.Errorf("%w: version %q", errMalformedHash, fields[2])
	}
	var (
		cost  hashCost
		lanes uint32
	)
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cost.memoryKiB, &cost.passes, &lanes); err != nil {
		return hashCost{}, nil, nil, fmt.Errorf("%w: cost %q", errMalformedHash, fields[3])
	}
	if lanes == 0 || lanes > 255 || cost.passes == 0 {
		return hashCost{}, nil, nil, fmt.Errorf("%w: cost %q", errMalformedHash, fields[3])
	}
	cost.lanes = uint8(lanes)

	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return hashCost{}, nil, nil, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return hashCost{}, nil, nil, fmt.Errorf("%w: key", errMalformedHash)
	}
	return cost, salt, key, nil
}
