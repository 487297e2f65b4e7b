package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/stoklink/stoklink/internal/accurate"
)

// AccountAPI is the slice of the account client the service depends on.
type AccountAPI interface {
	ResolveHost(ctx context.Context, apiToken string) (string, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (accurate.TokenPair, error)
	OpenSession(ctx context.Context, apiToken string, dbID int64) (accurate.ResolvedSession, error)
}

// Service owns the credential lifecycle: connecting new accounts, keeping
// host/session pairs fresh, and running ERP calls with the
// refresh-and-retry-once policy.
type Service struct {
	repo    Repository
	account AccountAPI
	logger  *slog.Logger

	// Collapses concurrent refreshes of the same credential. Last-write-wins
	// on the stored record is acceptable; this just stops a burst of 401s
	// from issuing a refresh stampede.
	refreshGroup singleflight.Group
}

// NewService constructs the credential service.
func NewService(repo Repository, account AccountAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, account: account, logger: logger}
}

// ConnectInput carries a newly authorized account.
type ConnectInput struct {
	Label           string
	APIToken        string
	RefreshToken    string
	AppKey          string
	SignatureSecret string
	DBID            int64
}

// Connect resolves the account's host, opens a session for the target
// database and persists the credential.
func (s *Service) Connect(ctx context.Context, input ConnectInput) (Credential, error) {
	host, err := s.account.ResolveHost(ctx, input.APIToken)
	if err != nil {
		return Credential{}, err
	}
	sess, err := s.account.OpenSession(ctx, input.APIToken, input.DBID)
	if err != nil {
		return Credential{}, err
	}
	// open-db reports the authoritative host; the resolved one is only a
	// fallback when the response omits it.
	if sess.Host == "" {
		sess.Host = host
	}

	cred := Credential{
		Label:           input.Label,
		APIToken:        input.APIToken,
		RefreshToken:    input.RefreshToken,
		AppKey:          input.AppKey,
		SignatureSecret: input.SignatureSecret,
		Host:            sess.Host,
		Session:         sess.Session,
		DBID:            input.DBID,
		SessionOpenedAt: sess.ResolvedAt,
	}
	id, err := s.repo.Create(ctx, cred)
	if err != nil {
		return Credential{}, err
	}
	cred.ID = id
	return cred, nil
}

// Get loads a credential record.
func (s *Service) Get(ctx context.Context, id int64) (Credential, error) {
	return s.repo.Get(ctx, id)
}

// List returns all connected credentials.
func (s *Service) List(ctx context.Context) ([]Credential, error) {
	return s.repo.List(ctx)
}

// Ensure loads a credential and opens a session when none is present yet.
func (s *Service) Ensure(ctx context.Context, id int64) (Credential, error) {
	cred, err := s.repo.Get(ctx, id)
	if err != nil {
		return Credential{}, err
	}
	if cred.Host == "" || cred.Session == "" {
		return s.reopenSession(ctx, cred)
	}
	return cred, nil
}

// Execute runs fn with fresh API credentials. On an auth failure it
// refreshes the access token (when a refresh token exists), reopens the
// session, and retries fn exactly once. A second auth failure, or an auth
// failure without a refresh token, surfaces ErrSessionExpired.
func (s *Service) Execute(ctx context.Context, id int64, fn func(ctx context.Context, creds accurate.Credentials) error) error {
	cred, err := s.Ensure(ctx, id)
	if err != nil {
		return err
	}

	err = fn(ctx, cred.APICredentials())
	if err == nil || !accurate.IsAuthFailure(err) {
		return err
	}

	if cred.RefreshToken == "" {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	refreshed, refreshErr := s.refresh(ctx, cred)
	if refreshErr != nil {
		return refreshErr
	}

	err = fn(ctx, refreshed.APICredentials())
	if err != nil && accurate.IsAuthFailure(err) {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return err
}

// RefreshSession reopens the session for a credential, refreshing the
// access token first when possible. Used by the keep-alive job and the
// manual refresh endpoint.
func (s *Service) RefreshSession(ctx context.Context, id int64) (Credential, error) {
	cred, err := s.repo.Get(ctx, id)
	if err != nil {
		return Credential{}, err
	}
	if cred.RefreshToken == "" {
		return s.reopenSession(ctx, cred)
	}
	return s.refresh(ctx, cred)
}

// refresh performs token refresh + session reopen, persisting both
// immediately so concurrent operations converge on the freshest values.
func (s *Service) refresh(ctx context.Context, cred Credential) (Credential, error) {
	v, err, shared := s.refreshGroup.Do(strconv.FormatInt(cred.ID, 10), func() (any, error) {
		pair, err := s.account.RefreshAccessToken(ctx, cred.RefreshToken)
		if err != nil {
			return nil, err
		}
		if err := s.repo.UpdateTokens(ctx, cred.ID, pair.AccessToken, pair.RefreshToken); err != nil {
			return nil, err
		}
		cred.APIToken = pair.AccessToken
		if pair.RefreshToken != "" {
			cred.RefreshToken = pair.RefreshToken
		}

		updated, err := s.openAndStoreSession(ctx, cred)
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		return Credential{}, err
	}
	if shared {
		s.logger.Debug("credential refresh coalesced", slog.Int64("credential_id", cred.ID))
	}
	return v.(Credential), nil
}

func (s *Service) reopenSession(ctx context.Context, cred Credential) (Credential, error) {
	v, err, _ := s.refreshGroup.Do("session:"+strconv.FormatInt(cred.ID, 10), func() (any, error) {
		return s.openAndStoreSession(ctx, cred)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (s *Service) openAndStoreSession(ctx context.Context, cred Credential) (Credential, error) {
	sess, err := s.account.OpenSession(ctx, cred.APIToken, cred.DBID)
	if err != nil {
		return Credential{}, err
	}
	if err := s.repo.UpdateSession(ctx, cred.ID, sess.Host, sess.Session, sess.ResolvedAt); err != nil {
		return Credential{}, err
	}
	cred.Host = sess.Host
	cred.Session = sess.Session
	cred.SessionOpenedAt = sess.ResolvedAt
	s.logger.Info("accurate session opened",
		slog.Int64("credential_id", cred.ID),
		slog.String("host", sess.Host),
	)
	return cred, nil
}
