package vault

import "time"

// CurrentVersion is the encryption format version stamped on every new
// field, carried to allow future algorithm migration.
const CurrentVersion = 1

// EncryptedField is the only persisted form of a sensitive value.
// Ciphertext, IV, and authentication tag are base64-encoded and stored
// separately. A field is never mutated; an update supersedes it with a
// freshly encrypted value.
type EncryptedField struct {
	Ciphertext  string    `json:"ciphertext"`
	IV          string    `json:"iv"`
	Tag         string    `json:"tag"`
	KeyID       string    `json:"keyId"`
	Version     int       `json:"version"`
	EncryptedAt time.Time `json:"encryptedAt"`
}

// fieldFromMap reconstructs an EncryptedField from a decoded JSON
// object, reporting whether the value has the expected shape. Object
// decryption uses this to decide which values to touch.
func fieldFromMap(m map[string]any) (*EncryptedField, bool) {
	ct, ok1 := m["ciphertext"].(string)
	iv, ok2 := m["iv"].(string)
	tag, ok3 := m["tag"].(string)
	keyID, ok4 := m["keyId"].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}

	f := &EncryptedField{Ciphertext: ct, IV: iv, Tag: tag, KeyID: keyID}

	switch v := m["version"].(type) {
	case float64:
		f.Version = int(v)
	case int:
		f.Version = v
	}
	if at, ok := m["encryptedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			f.EncryptedAt = ts
		}
	}

	return f, true
}
