package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// BrowserFingerprint hashes stable request characteristics to bind an OAuth
// callback to the browser that started the flow. The hash is compared, never
// the raw values, so nothing identifying is persisted.
func BrowserFingerprint(userAgent, acceptLanguage string) string {
	sum := sha256.Sum256([]byte(userAgent + "\n" + acceptLanguage))
	return hex.EncodeToString(sum[:])
}
