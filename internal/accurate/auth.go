package accurate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultAccountHost is the fixed account-level endpoint; token exchange
// and database sessions live here, not on the per-database hosts.
const DefaultAccountHost = "https://account.accurate.id"

// AccountClient talks to the account-level service. These calls are not
// signed and not rate limited; the account quota applies to the
// per-database API only.
type AccountClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
}

// NewAccountClient builds an account client. baseURL falls back to the
// production account host when empty.
func NewAccountClient(baseURL, clientID, clientSecret string, httpClient *http.Client) *AccountClient {
	if baseURL == "" {
		baseURL = DefaultAccountHost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AccountClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// ResolveHost exchanges a long-lived API token for the regional host the
// account's databases live on. Called once per newly issued token.
func (a *AccountClient) ResolveHost(ctx context.Context, apiToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "api_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/api-token.do", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+apiToken)

	body, status, err := a.send(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHostResolution, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrHostResolution, status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Data struct {
			APIWebURL string `json:"apiWebUrl"`
		} `json:"d"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrHostResolution, err)
	}
	if parsed.Data.APIWebURL == "" {
		return "", fmt.Errorf("%w: response missing web api url", ErrHostResolution)
	}
	return strings.TrimRight(parsed.Data.APIWebURL, "/"), nil
}

// RefreshAccessToken performs the OAuth refresh-token grant using Basic
// auth built from the registered client id and secret.
func (a *AccountClient) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.clientID, a.clientSecret)

	body, status, err := a.send(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	if status < 200 || status >= 300 {
		return TokenPair{}, fmt.Errorf("%w: status=%d body=%s", ErrTokenRefresh, status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return TokenPair{}, fmt.Errorf("%w: decode: %v", ErrTokenRefresh, err)
	}
	if parsed.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("%w: response missing access token", ErrTokenRefresh)
	}
	return TokenPair{AccessToken: parsed.AccessToken, RefreshToken: parsed.RefreshToken}, nil
}

// OpenSession exchanges a valid access token plus a database id for the
// resolved host and a fresh session scoped to that database.
func (a *AccountClient) OpenSession(ctx context.Context, apiToken string, dbID int64) (ResolvedSession, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(dbID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/open-db.do?"+query.Encode(), nil)
	if err != nil {
		return ResolvedSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)

	body, status, err := a.send(req)
	if err != nil {
		return ResolvedSession{}, fmt.Errorf("%w: %v", ErrSessionRefresh, err)
	}
	if status < 200 || status >= 300 {
		return ResolvedSession{}, fmt.Errorf("%w: status=%d body=%s", ErrSessionRefresh, status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Host    string `json:"host"`
		Session string `json:"session"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ResolvedSession{}, fmt.Errorf("%w: decode: %v", ErrSessionRefresh, err)
	}
	if parsed.Host == "" || parsed.Session == "" {
		return ResolvedSession{}, fmt.Errorf("%w: response missing host or session", ErrSessionRefresh)
	}
	return ResolvedSession{
		Host:       strings.TrimRight(parsed.Host, "/"),
		Session:    parsed.Session,
		ResolvedAt: a.now(),
	}, nil
}

func (a *AccountClient) send(req *http.Request) ([]byte, int, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
