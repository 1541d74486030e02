// ABOUTME: Package sqlguard enforces the read-only SQL whitelist and the
// ABOUTME: identifier sanitizer that bound every SQL adapter's query surface.
package sqlguard
