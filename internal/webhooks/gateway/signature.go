package gatewaywebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
)

// SignatureHeader carries the gateway's HMAC of the raw request body.
const SignatureHeader = "X-Gateway-Signature"

// VerifySignature checks the hex HMAC-SHA256 of body against the configured
// secret. An empty secret disables verification entirely.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing webhook signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "malformed webhook signature")
	}
	if !hmac.Equal(expected, provided) {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook signature mismatch")
	}
	return nil
}

// Sign computes the signature the gateway would attach to body. Test helper
// and reference for gateway configuration.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
