package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keySize is the AES-256 key length in bytes.
	keySize = 32

	// saltSize is the per-user derivation salt length in bytes.
	saltSize = 16

	// pbkdf2Iterations is the PBKDF2-SHA256 iteration count. The
	// password is the only secret input, so the stretch stays high.
	pbkdf2Iterations = 600_000

	// keyIDLength is the number of hex characters of the salt hash used
	// as the key identifier.
	keyIDLength = 16
)

// deriveKey stretches a password and salt into an AES-256 key.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
}

// KeyIDFromSalt returns the deterministic identifier for the key derived
// from a given salt. The same password and salt always yield the same
// identifier without the key itself ever being stored or hashed.
func KeyIDFromSalt(salt []byte) string {
	sum := sha256.Sum256(salt)
	return hex.EncodeToString(sum[:])[:keyIDLength]
}

// GenerateSalt produces a fresh random derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
