package oauthsrv

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey expands the configured session key into a purpose-bound
// 32-byte key via HKDF-SHA256, so the JWT signing key, the state-cookie
// MAC key, and any future signed artifact never share raw key material.
func DeriveKey(sessionKey []byte, purpose string) ([]byte, error) {
	r := hkdf.New(sha256.New, sessionKey, nil, []byte("kraken/"+purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
