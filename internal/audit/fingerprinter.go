package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// CalculateFingerprint returns a stable, non-reversible fingerprint for a
// token. Audit entries carry the fingerprint instead of the token itself.
func CalculateFingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}
