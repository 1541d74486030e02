// ABOUTME: Package quota implements the gateway's two admission gates: the
// ABOUTME: organization daily request cap and the per-credential trial cap.
package quota
