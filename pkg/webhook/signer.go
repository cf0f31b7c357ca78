package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// SignatureHeader carries the payload signature on outbound requests.
const SignatureHeader = "Srvgraph-Signature"

// HMACSigner signs payloads with HMAC-SHA256 over "{timestamp}.{payload}".
//
// The header format is:
//
//	Srvgraph-Signature: t={timestamp},v1={hex signature}
type HMACSigner struct {
	now func() time.Time
}

// NewHMACSigner creates a signer that timestamps with the wall clock.
func NewHMACSigner() *HMACSigner {
	return &HMACSigner{now: time.Now}
}

// Sign implements Signer.
func (s *HMACSigner) Sign(payload []byte, secret string) map[string]string {
	return s.SignWithTimestamp(payload, secret, s.now().Unix())
}

// SignWithTimestamp produces the signature header for a fixed timestamp.
func (s *HMACSigner) SignWithTimestamp(payload []byte, secret string, timestamp int64) map[string]string {
	sig := ComputeSignature(timestamp, payload, secret)
	return map[string]string{
		SignatureHeader: fmt.Sprintf("t=%d,v1=%s", timestamp, sig),
	}
}

// ComputeSignature returns the hex HMAC-SHA256 of "{timestamp}.{payload}".
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
