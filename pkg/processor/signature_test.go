package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	payload := []byte(`{"from":"+15555550100","body":"hi"}`)
	signature := SignPayload("webhook-secret", payload)

	assert.True(t, VerifySignature("webhook-secret", payload, signature))
	assert.True(t, VerifySignature("webhook-secret", payload, "sha256="+signature))
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"from":"+15555550100","body":"hi"}`)
	signature := SignPayload("webhook-secret", payload)

	assert.False(t, VerifySignature("webhook-secret", []byte(`{"body":"bye"}`), signature))
	assert.False(t, VerifySignature("webhook-secret", payload, "sha256=deadbeef"))
	assert.False(t, VerifySignature("webhook-secret", payload, ""))
}

func TestVerifySignatureEmptySecretDisablesVerification(t *testing.T) {
	assert.True(t, VerifySignature("", []byte("anything"), "whatever"))
}
