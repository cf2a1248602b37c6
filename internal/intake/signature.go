package intake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	DefaultSignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	DefaultTimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"
)

// SignatureVerifier checks webhook deliveries signed with a shared secret:
// base64(HMAC-SHA256(secret, timestamp || body)). With no secret configured
// every delivery is accepted.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(strings.TrimSpace(secret))}
}

// Enabled reports whether deliveries are actually checked.
func (v *SignatureVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify checks signature against the byte-exact request body.
func (v *SignatureVerifier) Verify(signature, timestamp string, body []byte) error {
	if !v.Enabled() {
		return nil
	}

	signature = strings.TrimSpace(signature)
	timestamp = strings.TrimSpace(timestamp)
	if signature == "" || timestamp == "" {
		return newError(KindAuthentication, ErrMissingSignature)
	}

	expected := sign(v.secret, timestamp, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return newError(KindAuthentication, ErrInvalidSignature)
	}

	return nil
}

// Sign produces the signature a sender holding secret would attach.
func Sign(secret, timestamp string, body []byte) string {
	return sign([]byte(secret), timestamp, body)
}

func sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
