package accurate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"
)

// Signer builds the per-request authentication headers. Every call gets a
// fresh timestamp; a timestamp+signature pair must never be reused, retries
// included.
type Signer struct {
	now func() time.Time
}

// NewSigner returns a Signer using wall-clock time.
func NewSigner() *Signer {
	return &Signer{now: time.Now}
}

// NewSignerWithClock lets tests pin the timestamp.
func NewSignerWithClock(now func() time.Time) *Signer {
	return &Signer{now: now}
}

// Headers computes the signed header set for one request.
func (s *Signer) Headers(apiToken, signatureSecret string) http.Header {
	timestamp := s.now().Format(time.RFC3339)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiToken)
	h.Set("X-Api-Timestamp", timestamp)
	h.Set("X-Api-Signature", Signature(signatureSecret, timestamp))
	h.Set("X-Language-Profile", "US")
	h.Set("Content-Type", "application/json")
	return h
}

// Signature is the base64 HMAC-SHA256 of the timestamp keyed by the
// signature secret.
func Signature(signatureSecret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(signatureSecret))
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
