package accurate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(nil, NewRateLimiter(8, 100000), NewSigner(), nil)
}

func testCreds(host string) Credentials {
	return Credentials{
		APIToken:        "token",
		SignatureSecret: "secret",
		Host:            host,
		Session:         "sess-1",
	}
}

func TestCallRequiresResolvedHost(t *testing.T) {
	client := testClient()
	_, err := client.Call(context.Background(), Credentials{APIToken: "t"}, "/api/item/list.do", CallOptions{})
	require.ErrorIs(t, err, ErrHostNotResolved)
}

func TestCallSignsAndSessionsEveryRequest(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		require.Equal(t, "/accurate/api/item/list.do", r.URL.Path)
		_, _ = w.Write([]byte(`{"s":true,"d":[]}`))
	}))
	defer srv.Close()

	client := testClient()
	_, err := client.Call(context.Background(), testCreds(srv.URL), "/api/item/list.do", CallOptions{})
	require.NoError(t, err)

	require.Equal(t, "Bearer token", got.Get("Authorization"))
	require.Equal(t, "sess-1", got.Get("X-Session-ID"))

	timestamp := got.Get("X-Api-Timestamp")
	require.NotEmpty(t, timestamp)
	_, err = time.Parse(time.RFC3339, timestamp)
	require.NoError(t, err)
	require.Equal(t, Signature("secret", timestamp), got.Get("X-Api-Signature"))
}

func TestCallNonOKStatusBecomesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer srv.Close()

	client := testClient()
	_, err := client.Call(context.Background(), testCreds(srv.URL), "/api/item/list.do", CallOptions{})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)
	require.Contains(t, httpErr.Body, "invalid_token")
	require.True(t, IsAuthFailure(err))
}

func TestCallPayloadFailureBecomesLogicError(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"success flag false": {
			body: `{"s":false,"d":["Data tidak ditemukan"]}`,
			want: "Data tidak ditemukan",
		},
		"message without success flag": {
			body: `{"r":"session has expired"}`,
			want: "session has expired",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := testClient()
			_, err := client.Call(context.Background(), testCreds(srv.URL), "/api/x.do", CallOptions{})

			var logicErr *LogicError
			require.ErrorAs(t, err, &logicErr)
			require.Equal(t, tc.want, logicErr.Message)
			require.False(t, IsAuthFailure(err))
		})
	}
}

func TestCallReleasesLimiterOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	limiter := NewRateLimiter(1, 100000)
	client := NewClient(nil, limiter, NewSigner(), nil)

	for i := 0; i < 3; i++ {
		_, err := client.Call(context.Background(), testCreds(srv.URL), "/api/x.do", CallOptions{})
		require.Error(t, err)
	}

	// With one slot, a leaked acquisition would deadlock the next call.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, limiter.Acquire(ctx))
	limiter.Release()
}

func TestIsAuthFailure(t *testing.T) {
	require.True(t, IsAuthFailure(&HTTPError{Status: 401}))
	require.True(t, IsAuthFailure(&HTTPError{Status: 400, Body: `{"error":"invalid_token"}`}))
	require.False(t, IsAuthFailure(&HTTPError{Status: 500, Body: "boom"}))
	require.False(t, IsAuthFailure(&LogicError{Message: "invalid quantity"}))
	require.False(t, IsAuthFailure(nil))
}
