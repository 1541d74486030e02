package crypto

// SealField seals a field's value if declared encrypted in the service's
// field schema. Unencrypted fields pass through unchanged.
func (k *MasterKey) SealField(value string, encrypted bool) (string, error) {
	if !encrypted {
		return value, nil
	}
	return k.Seal(value)
}

// OpenField decrypts a field's stored value when it is declared encrypted.
// Decryption is best-effort: a value that fails to parse as an envelope
// (e.g. historical plaintext written before the field was marked
// encrypted) is returned unchanged rather than erroring, so schema changes
// don't strand old rows. A value that parses as an envelope but fails
// authentication still fails closed.
func (k *MasterKey) OpenField(stored string, encrypted bool) (string, error) {
	if !encrypted {
		return stored, nil
	}
	plaintext, err := k.Open(stored)
	if err == ErrMalformedEnvelope {
		return stored, nil
	}
	if err != nil {
		return "", err
	}
	return plaintext, nil
}
