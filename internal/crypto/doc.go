// ABOUTME: Package crypto seals and unseals credential config values at rest.
// ABOUTME: AES-256-GCM with a per-record salt and PBKDF2-derived key, hex-encoded.
package crypto
