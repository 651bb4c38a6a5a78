package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// gcmTagSize is the AES-GCM authentication tag length in bytes.
const gcmTagSize = 16

var (
	// ErrVaultLocked indicates an encrypt or decrypt call on a vault
	// with no live key. Callers must Unlock first.
	ErrVaultLocked = errors.New("vault: locked")

	// ErrDecryptionFailed is returned for every cryptographic failure:
	// wrong key, tampered ciphertext, IV, tag, or mismatched AAD. The
	// causes are deliberately indistinguishable.
	ErrDecryptionFailed = errors.New("vault: decryption failed")

	// ErrInvalidField indicates a structurally malformed EncryptedField
	// (bad encoding, missing parts) before any cryptography runs.
	ErrInvalidField = errors.New("vault: invalid encrypted field")
)

// Vault performs field-level authenticated encryption under a
// password-derived key.
//
// Lock and Unlock mutate the held key state and are mutually exclusive
// with in-flight Encrypt/Decrypt calls; the vault serializes them
// internally with a read-write mutex.
type Vault struct {
	mu sync.RWMutex

	// Active encryption key state. key is zeroized on Lock; salt is
	// retained so the vault can be re-derived later.
	key   []byte
	aead  cipher.AEAD
	keyID string
	salt  []byte

	// keyring holds AEADs for previously active keys (rotation), keyed
	// by key identifier. Decrypt consults it for old records.
	keyring map[string]cipher.AEAD

	registry map[string]struct{}
	logger   *slog.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) { v.logger = logger }
}

// WithSensitiveFields replaces the default registry of field names that
// EncryptObject and DecryptObject operate on.
func WithSensitiveFields(names ...string) Option {
	return func(v *Vault) {
		v.registry = make(map[string]struct{}, len(names))
		for _, n := range names {
			v.registry[n] = struct{}{}
		}
	}
}

// New creates a locked vault. Call Unlock before encrypting.
func New(opts ...Option) *Vault {
	v := &Vault{
		keyring:  make(map[string]cipher.AEAD),
		registry: defaultSensitiveFields(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Unlock derives the active key from password and salt and readies the
// vault for encryption. A nil salt generates a fresh one, retrievable
// via Salt for persistence. Re-unlocking with a different salt rotates
// the active key; the previous key stays on the keyring so existing
// records remain decryptable.
func (v *Vault) Unlock(password string, salt []byte) error {
	if password == "" {
		return fmt.Errorf("vault: password is required")
	}

	if salt == nil {
		var err error
		salt, err = GenerateSalt()
		if err != nil {
			return err
		}
	}

	key := deriveKey(password, salt)
	aead, err := newAEAD(key)
	if err != nil {
		zeroize(key)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.aead != nil && v.keyID != "" {
		v.keyring[v.keyID] = v.aead
	}

	zeroize(v.key)
	v.key = key
	v.aead = aead
	v.keyID = KeyIDFromSalt(salt)
	v.salt = append([]byte(nil), salt...)
	v.keyring[v.keyID] = aead

	v.logger.Info("Vault unlocked", "key_id", v.keyID)
	return nil
}

// Lock discards the live key material but retains the salt, so the
// vault can later be re-derived from the same password.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	zeroize(v.key)
	v.key = nil
	v.aead = nil
	v.keyring = make(map[string]cipher.AEAD)
	keyID := v.keyID
	v.keyID = ""

	v.logger.Info("Vault locked", "key_id", keyID)
}

// Unlocked reports whether a live key is present.
func (v *Vault) Unlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.aead != nil
}

// Salt returns a copy of the active derivation salt. The salt is not
// secret and is persisted separately from encrypted fields.
func (v *Vault) Salt() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]byte(nil), v.salt...)
}

// KeyID returns the identifier of the active key, or "" when locked.
func (v *Vault) KeyID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keyID
}

// AddUnwrappedKey registers an additional decryption key, typically the
// result of UnwrapKey during hierarchical rotation. Records encrypted
// under it become decryptable without re-deriving from a password.
func (v *Vault) AddUnwrappedKey(keyID string, key []byte) error {
	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.keyring[keyID] = aead
	return nil
}

// Encrypt seals plaintext under the active key with a fresh IV.
// The optional aad binds the ciphertext to its context; Decrypt must be
// called with the same bytes.
func (v *Vault) Encrypt(plaintext string, aad []byte) (*EncryptedField, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return nil, ErrVaultLocked
	}

	iv := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), aad)
	// Seal appends the tag to the ciphertext; store the two separately.
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return &EncryptedField{
		Ciphertext:  base64.StdEncoding.EncodeToString(ct),
		IV:          base64.StdEncoding.EncodeToString(iv),
		Tag:         base64.StdEncoding.EncodeToString(tag),
		KeyID:       v.keyID,
		Version:     CurrentVersion,
		EncryptedAt: time.Now().UTC(),
	}, nil
}

// Decrypt opens an encrypted field, selecting the key by the field's
// recorded identifier. Any failure is reported as ErrDecryptionFailed
// with no detail about the cause; partial plaintext is never returned.
func (v *Vault) Decrypt(f *EncryptedField, aad []byte) (string, error) {
	if f == nil {
		return "", ErrInvalidField
	}

	ct, err1 := base64.StdEncoding.DecodeString(f.Ciphertext)
	iv, err2 := base64.StdEncoding.DecodeString(f.IV)
	tag, err3 := base64.StdEncoding.DecodeString(f.Tag)
	if err1 != nil || err2 != nil || err3 != nil || len(tag) != gcmTagSize {
		return "", ErrInvalidField
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return "", ErrVaultLocked
	}

	aead, ok := v.keyring[f.KeyID]
	if !ok {
		// Unknown key is indistinguishable from a wrong key.
		return "", ErrDecryptionFailed
	}
	if len(iv) != aead.NonceSize() {
		return "", ErrInvalidField
	}

	var sealed bytes.Buffer
	sealed.Write(ct)
	sealed.Write(tag)

	plaintext, err := aead.Open(nil, iv, sealed.Bytes(), aad)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("vault: key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ContextAAD builds the canonical additional-authenticated-data tuple
// binding a ciphertext to a tenant, user, and purpose, plus any extra
// parts such as a record timestamp. Fields are length-prefixed so
// distinct tuples can never collide. A ciphertext sealed with one tuple
// cannot be replayed under another even if storage is copied wholesale.
func ContextAAD(tenantID, userID, purpose string, extra ...string) []byte {
	var buf bytes.Buffer
	parts := append([]string{tenantID, userID, purpose}, extra...)
	for _, part := range parts {
		fmt.Fprintf(&buf, "%d:", len(part))
		buf.WriteString(part)
	}
	return buf.Bytes()
}
