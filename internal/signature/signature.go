// Package signature verifies LINE webhook signatures.
//
// LINE signs each delivery with HMAC-SHA256 over the raw request body keyed by
// the channel secret, and sends the base64 digest in X-Line-Signature.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Header is the request header carrying the signature
const Header = "X-Line-Signature"

// Sign returns the base64 HMAC-SHA256 digest of body keyed by secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the valid digest of body under secret.
// body must be the exact bytes received on the wire.
func Verify(secret, signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(secret, body)))
}
