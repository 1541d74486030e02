package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize       = 64
	ivSize         = 16
	tagSize        = 16
	keySize        = 32
	pbkdf2Iterations = 100_000
)

// ErrMalformedEnvelope is returned when a sealed value does not parse as
// salt:iv:ciphertext:tag hex segments.
var ErrMalformedEnvelope = errors.New("crypto: malformed envelope")

// ErrAuthentication is returned when the GCM authentication tag does not
// verify. A caller must not distinguish this from "wrong key" at the
// field level — both collapse to this single error.
var ErrAuthentication = errors.New("crypto: authentication failed")

// MasterKey is the process-wide secret used to derive per-record keys.
// It has an init-on-start lifecycle: absence at startup is a fatal
// configuration error, enforced by NewMasterKey's caller, not by this type.
type MasterKey struct {
	secret []byte
}

// NewMasterKey wraps raw key bytes. The master key itself is never used
// directly as an AES key; every seal/open derives a fresh per-record key
// via PBKDF2 over master||salt.
func NewMasterKey(secret []byte) (*MasterKey, error) {
	if len(secret) == 0 {
		return nil, errors.New("crypto: master key must not be empty")
	}
	return &MasterKey{secret: secret}, nil
}

// deriveKey derives a 32-byte AES-256 key from the master secret and salt.
func (k *MasterKey) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(k.secret, append(k.secret[:0:0], salt...), pbkdf2Iterations, keySize, sha256.New)
}

// Seal encrypts plaintext into the on-disk envelope format
// salt:iv:ciphertext:tag, each segment lowercase hex. Every call draws a
// fresh salt and IV so two encryptions of the same plaintext never collide.
func (k *MasterKey) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: generating salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("crypto: generating iv: %w", err)
	}

	gcm, err := k.gcmFor(salt)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, ":"), nil
}

// Open decrypts an envelope produced by Seal. It fails closed: any
// malformed envelope or tag mismatch returns an error, never a partial
// or best-guess plaintext.
func (k *MasterKey) Open(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 4 {
		return "", ErrMalformedEnvelope
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	tag, err := hex.DecodeString(parts[3])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	if len(iv) != ivSize || len(tag) != tagSize || len(salt) != saltSize {
		return "", ErrMalformedEnvelope
	}

	gcm, err := k.gcmFor(salt)
	if err != nil {
		return "", err
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

func (k *MasterKey) gcmFor(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("crypto: aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
