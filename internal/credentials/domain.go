// Package credentials persists Accurate account credentials and wraps ERP
// calls with the refresh-and-retry-once policy.
package credentials

import (
	"errors"
	"time"

	"github.com/stoklink/stoklink/internal/accurate"
)

// Credential is one connected Accurate company database. Host and Session
// are refreshed together; either both are usable or both are stale.
type Credential struct {
	ID              int64
	Label           string
	APIToken        string
	RefreshToken    string
	AppKey          string
	SignatureSecret string
	Host            string
	Session         string
	DBID            int64
	SessionOpenedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// APICredentials projects the fields a per-database API call needs.
func (c Credential) APICredentials() accurate.Credentials {
	return accurate.Credentials{
		APIToken:        c.APIToken,
		SignatureSecret: c.SignatureSecret,
		Host:            c.Host,
		Session:         c.Session,
	}
}

var (
	// ErrNotFound indicates an unknown credential id.
	ErrNotFound = errors.New("credentials: not found")
	// ErrDuplicateLabel indicates a label collision on create.
	ErrDuplicateLabel = errors.New("credentials: label already in use")
	// ErrSessionExpired is the user-facing terminal auth failure: the ERP
	// rejected the credential and no refresh token exists (or the refresh
	// did not help). The remedy is reconnecting the account.
	ErrSessionExpired = errors.New("credentials: session expired, reconnect the Accurate account")
)
