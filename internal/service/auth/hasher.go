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

var ErrMismatchedHash = errors.New("password does not match hash")

// Argon2id password hasher
// Will be used as default one if user not provide it's own
// Hashes are encoded as $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultHasher = Argon2Hasher{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

var b64 = base64.RawStdEncoding

func (h Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("error while generating salt. Err: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads, b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Parameters are taken from the encoded hash, so hashes made with other settings still verify
func (h Argon2Hasher) Compare(hashedPassword string, password string) error {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return errors.New("unsupported hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return fmt.Errorf("malformed argon2 params. Err: %w", err)
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("malformed salt. Err: %w", err)
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("malformed key. Err: %w", err)
	}

	other := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, other) != 1 {
		return ErrMismatchedHash
	}

	return nil
}
