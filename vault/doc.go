// Package vault implements field-level authenticated encryption for
// sensitive data.
//
// Keys are derived from a password and per-user salt via PBKDF2; the
// derived key never leaves the process and is never persisted. Each
// encrypted field records the identifier of the key that produced it,
// so keys can rotate without breaking old records. Encryption is
// AES-256-GCM with a fresh IV per call and optional additional
// authenticated data binding the ciphertext to its context.
//
// Every cryptographic failure is reported as ErrDecryptionFailed with
// no further detail: a wrong password, a tampered ciphertext, and a tag
// mismatch must stay indistinguishable so the vault cannot act as a
// padding or key-confirmation oracle.
package vault
