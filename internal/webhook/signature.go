// Package webhook accepts signed facts snapshots pushed by the aggregation
// layer. Every delivery carries an HMAC-SHA256 signature of the raw body.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Header names used by deliveries.
const (
	HeaderSignature = "X-Bizhealth-Signature-256"
	HeaderEvent     = "X-Bizhealth-Event"
	HeaderDelivery  = "X-Bizhealth-Delivery"
)

// ErrSignature is wrapped by every VerifySignature failure.
var ErrSignature = errors.New("invalid signature")

// Sign returns the signature header value for payload.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates a "sha256=<hex>" signature against the payload.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return fmt.Errorf("%w: missing sha256= prefix", ErrSignature)
	}
	sig, err := hex.DecodeString(hexSig)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSignature, err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return fmt.Errorf("%w: mismatch", ErrSignature)
	}
	return nil
}
