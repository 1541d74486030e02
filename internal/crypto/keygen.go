package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MasterKeySize is the length in bytes of a freshly generated master key.
const MasterKeySize = 32

// MustNewMasterKey wraps NewMasterKey for callers for whom an invalid or
// missing master key is a fatal configuration error at startup, not a
// recoverable one to surface deep in a request path.
func MustNewMasterKey(secret []byte) (*MasterKey, error) {
	key, err := NewMasterKey(secret)
	if err != nil {
		return nil, fmt.Errorf("crypto: master key unavailable at startup: %w", err)
	}
	return key, nil
}

// GenerateMasterKeyHex produces a fresh random MasterKeySize-byte key,
// hex-encoded for an operator to paste into GATEWAY_MASTER_KEY.
func GenerateMasterKeyHex() (string, error) {
	secret := make([]byte, MasterKeySize)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("crypto: generating master key: %w", err)
	}
	return hex.EncodeToString(secret), nil
}
