package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// The key hierarchy runs master → tenant → user → field. Child keys are
// derived with HKDF and may be stored wrapped (encrypted) under their
// parent, so rotating a key at any level never requires touching the
// plaintext guarded by its descendants: re-wrap the children, done.

// WrappedKey is the persisted form of a key encrypted under its parent.
// Raw key material never appears in it.
type WrappedKey struct {
	ID          string    `json:"id"`
	KeyID       string    `json:"keyId"`
	ParentKeyID string    `json:"parentKeyId"`
	Ciphertext  string    `json:"ciphertext"`
	IV          string    `json:"iv"`
	Tag         string    `json:"tag"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DeriveSubKey derives a child key from a parent using HKDF-SHA256 with
// the given info string (e.g. "tenant:acme" or "user:1234/field:ssn").
// Returns the key and its deterministic identifier.
func DeriveSubKey(parent []byte, info string) ([]byte, string, error) {
	if len(parent) != keySize {
		return nil, "", fmt.Errorf("vault: parent key must be %d bytes, got %d", keySize, len(parent))
	}

	r := hkdf.New(sha256.New, parent, nil, []byte(info))
	child := make([]byte, keySize)
	if _, err := io.ReadFull(r, child); err != nil {
		return nil, "", fmt.Errorf("failed to derive subkey: %w", err)
	}

	return child, keyIDForInfo(info), nil
}

// keyIDForInfo is the deterministic identifier of a derived key: a hash
// of the derivation info, never of the key material itself.
func keyIDForInfo(info string) string {
	sum := sha256.Sum256([]byte("seccore/subkey/" + info))
	return hex.EncodeToString(sum[:])[:keyIDLength]
}

// GenerateKey produces a fresh random AES-256 key, used for field keys
// that are wrapped rather than derived.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// WrapKey encrypts child under parent with AES-256-GCM, producing a
// record safe to persist alongside ordinary data.
func WrapKey(parent, child []byte, childKeyID, parentKeyID string) (*WrappedKey, error) {
	aead, err := wrapAEAD(parent)
	if err != nil {
		return nil, err
	}
	if len(child) != keySize {
		return nil, fmt.Errorf("vault: child key must be %d bytes, got %d", keySize, len(child))
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	aad := wrapAAD(childKeyID, parentKeyID)
	sealed := aead.Seal(nil, iv, child, aad)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return &WrappedKey{
		ID:          uuid.NewString(),
		KeyID:       childKeyID,
		ParentKeyID: parentKeyID,
		Ciphertext:  base64.StdEncoding.EncodeToString(ct),
		IV:          base64.StdEncoding.EncodeToString(iv),
		Tag:         base64.StdEncoding.EncodeToString(tag),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// UnwrapKey recovers a child key from its wrapped record using the
// parent key. Failures are uniform: a wrong parent and a tampered
// record are indistinguishable.
func UnwrapKey(parent []byte, w *WrappedKey) ([]byte, error) {
	if w == nil {
		return nil, ErrInvalidField
	}
	aead, err := wrapAEAD(parent)
	if err != nil {
		return nil, err
	}

	ct, err1 := base64.StdEncoding.DecodeString(w.Ciphertext)
	iv, err2 := base64.StdEncoding.DecodeString(w.IV)
	tag, err3 := base64.StdEncoding.DecodeString(w.Tag)
	if err1 != nil || err2 != nil || err3 != nil || len(iv) != aead.NonceSize() || len(tag) != gcmTagSize {
		return nil, ErrInvalidField
	}

	sealed := append(append([]byte(nil), ct...), tag...)
	child, err := aead.Open(nil, iv, sealed, wrapAAD(w.KeyID, w.ParentKeyID))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return child, nil
}

func wrapAEAD(parent []byte) (cipher.AEAD, error) {
	if len(parent) != keySize {
		return nil, fmt.Errorf("vault: parent key must be %d bytes, got %d", keySize, len(parent))
	}
	block, err := aes.NewCipher(parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// wrapAAD binds a wrapped key to its position in the hierarchy, so a
// wrapped record cannot be replayed under a different parent or child.
func wrapAAD(childKeyID, parentKeyID string) []byte {
	return []byte("wrap:" + parentKeyID + ">" + childKeyID)
}
