package accurate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerHeaders(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	signer := NewSignerWithClock(func() time.Time { return at })

	h := signer.Headers("token-123", "secret-xyz")

	require.Equal(t, "Bearer token-123", h.Get("Authorization"))
	require.Equal(t, "US", h.Get("X-Language-Profile"))
	require.Equal(t, "application/json", h.Get("Content-Type"))

	timestamp := h.Get("X-Api-Timestamp")
	require.Equal(t, at.Format(time.RFC3339), timestamp)

	mac := hmac.New(sha256.New, []byte("secret-xyz"))
	mac.Write([]byte(timestamp))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	require.Equal(t, want, h.Get("X-Api-Signature"))
}

func TestSignerFreshTimestampPerCall(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	signer := NewSignerWithClock(func() time.Time {
		at = at.Add(time.Second)
		return at
	})

	first := signer.Headers("token", "secret")
	second := signer.Headers("token", "secret")

	require.NotEqual(t, first.Get("X-Api-Timestamp"), second.Get("X-Api-Timestamp"))
	require.NotEqual(t, first.Get("X-Api-Signature"), second.Get("X-Api-Signature"))
}

func TestSignatureDeterministicForFixedTimestamp(t *testing.T) {
	require.Equal(t,
		Signature("secret", "2024-03-09T10:30:00Z"),
		Signature("secret", "2024-03-09T10:30:00Z"),
	)
	require.NotEqual(t,
		Signature("secret", "2024-03-09T10:30:00Z"),
		Signature("secret", "2024-03-09T10:30:01Z"),
	)
}
