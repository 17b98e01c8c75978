package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignPayload computes the hex HMAC-SHA256 signature of a webhook payload.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a carrier webhook signature in constant time. The
// "sha256=" prefix some carriers send is accepted. An empty secret disables
// verification.
func VerifySignature(secret string, payload []byte, signature string) bool {
	if secret == "" {
		return true
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	expected := SignPayload(secret, payload)

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
