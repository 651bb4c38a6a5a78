package vault

import (
	"encoding/json"
	"fmt"
)

// defaultSensitiveFields is the fixed registry of field names treated as
// sensitive by EncryptObject and DecryptObject. Anything not listed
// passes through untouched.
func defaultSensitiveFields() map[string]struct{} {
	names := []string{
		"ssn",
		"date_of_birth",
		"diagnosis",
		"medications",
		"allergies",
		"lab_results",
		"clinical_notes",
		"insurance_id",
		"emergency_contact",
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// EncryptObject returns a copy of obj with every registered sensitive
// field's string value replaced by its EncryptedField. Unregistered
// fields and non-string values pass through untouched.
func (v *Vault) EncryptObject(obj map[string]any, aad []byte) (map[string]any, error) {
	if obj == nil {
		return nil, nil
	}

	out := make(map[string]any, len(obj))
	for name, value := range obj {
		if _, sensitive := v.registry[name]; !sensitive {
			out[name] = value
			continue
		}

		s, ok := value.(string)
		if !ok {
			out[name] = value
			continue
		}

		f, err := v.Encrypt(s, aad)
		if err != nil {
			return nil, fmt.Errorf("encrypting field %q: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}

// DecryptObject reverses EncryptObject. Only values shaped like an
// EncryptedField are touched: either a *EncryptedField or a decoded
// JSON object carrying the ciphertext/iv/tag/keyId keys. Everything
// else passes through untouched.
func (v *Vault) DecryptObject(obj map[string]any, aad []byte) (map[string]any, error) {
	if obj == nil {
		return nil, nil
	}

	out := make(map[string]any, len(obj))
	for name, value := range obj {
		f, ok := asEncryptedField(value)
		if !ok {
			out[name] = value
			continue
		}

		plaintext, err := v.Decrypt(f, aad)
		if err != nil {
			return nil, fmt.Errorf("decrypting field %q: %w", name, err)
		}
		out[name] = plaintext
	}
	return out, nil
}

// asEncryptedField recognizes the persisted shapes an encrypted field
// can arrive in after storage round trips.
func asEncryptedField(value any) (*EncryptedField, bool) {
	switch v := value.(type) {
	case *EncryptedField:
		return v, true
	case EncryptedField:
		return &v, true
	case map[string]any:
		return fieldFromMap(v)
	case json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, false
		}
		return fieldFromMap(m)
	default:
		return nil, false
	}
}
