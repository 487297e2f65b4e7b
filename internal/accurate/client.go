package accurate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MetricsRecorder receives dispatcher timings. Nil recorders are allowed.
type MetricsRecorder interface {
	ObserveCall(path, outcome string, elapsed time.Duration)
	ObserveLimiterWait(elapsed time.Duration)
}

// Envelope is the response wrapper used by every per-database endpoint.
// Failure is signaled either by s=false or by a message in r without s.
type Envelope struct {
	Success *bool           `json:"s"`
	Data    json.RawMessage `json:"d"`
	Message string          `json:"r"`
	Paging  *PageInfo       `json:"sp"`
}

// CallOptions selects the method, query and JSON body for one dispatch.
type CallOptions struct {
	Method string
	Query  url.Values
	Body   any
}

// Client dispatches signed, rate-limited calls against a resolved host.
// It holds no retry logic; refresh-on-auth-failure belongs to the caller,
// which knows whether a refresh token exists.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	signer     *Signer
	metrics    MetricsRecorder
}

// NewClient wires the dispatcher. limiter must be the process-wide
// instance; metrics may be nil.
func NewClient(httpClient *http.Client, limiter *RateLimiter, signer *Signer, metrics MetricsRecorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if signer == nil {
		signer = NewSigner()
	}
	return &Client{httpClient: httpClient, limiter: limiter, signer: signer, metrics: metrics}
}

// Call performs one signed request to {host}/accurate{path} and returns the
// parsed envelope. The limiter slot is released on every exit path.
func (c *Client) Call(ctx context.Context, creds Credentials, path string, opts CallOptions) (*Envelope, error) {
	if creds.Host == "" {
		return nil, ErrHostNotResolved
	}

	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()
	if c.metrics != nil {
		c.metrics.ObserveLimiterWait(time.Since(waitStart))
	}

	env, err := c.do(ctx, creds, path, opts)
	if c.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.ObserveCall(path, outcome, time.Since(waitStart))
	}
	return env, err
}

func (c *Client) do(ctx context.Context, creds Credentials, path string, opts CallOptions) (*Envelope, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := creds.Host + "/accurate" + path
	if len(opts.Query) > 0 {
		endpoint += "?" + opts.Query.Encode()
	}

	var payload io.Reader
	if opts.Body != nil {
		raw, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("accurate: encode body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	// Signatures are single-use; headers are rebuilt for every dispatch.
	req.Header = c.signer.Headers(creds.APIToken, creds.SignatureSecret)
	if creds.Session != "" {
		req.Header.Set("X-Session-ID", creds.Session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("accurate: decode response: %w", err)
	}
	if err := env.failure(); err != nil {
		return nil, err
	}
	return &env, nil
}

// failure maps the envelope's own failure signaling onto a LogicError.
func (e *Envelope) failure() error {
	if e.Success != nil && !*e.Success {
		msg := e.Message
		if msg == "" {
			msg = firstDataMessage(e.Data)
		}
		if msg == "" {
			msg = "request rejected"
		}
		return &LogicError{Message: msg}
	}
	if e.Success == nil && e.Message != "" {
		return &LogicError{Message: e.Message}
	}
	return nil
}

// Failed envelopes sometimes carry their messages as d:["..."].
func firstDataMessage(raw json.RawMessage) string {
	var messages []string
	if err := json.Unmarshal(raw, &messages); err == nil && len(messages) > 0 {
		return messages[0]
	}
	return ""
}
