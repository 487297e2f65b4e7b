package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts credential persistence for the service.
type Repository interface {
	Get(ctx context.Context, id int64) (Credential, error)
	List(ctx context.Context) ([]Credential, error)
	Create(ctx context.Context, cred Credential) (int64, error)
	UpdateTokens(ctx context.Context, id int64, apiToken, refreshToken string) error
	UpdateSession(ctx context.Context, id int64, host, session string, openedAt time.Time) error
}

// PGRepository stores credentials in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the Postgres-backed repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const credentialColumns = `id, label, api_token, refresh_token, app_key, signature_secret, host, session, db_id, session_opened_at, created_at, updated_at`

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	err := row.Scan(
		&c.ID, &c.Label, &c.APIToken, &c.RefreshToken, &c.AppKey, &c.SignatureSecret,
		&c.Host, &c.Session, &c.DBID, &c.SessionOpenedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	return c, err
}

// Get loads one credential by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Credential, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id)
	return scanCredential(row)
}

// List returns all credentials ordered by label.
func (r *PGRepository) List(ctx context.Context) ([]Credential, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+credentialColumns+` FROM credentials ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

// Create inserts a credential and returns its id.
func (r *PGRepository) Create(ctx context.Context, cred Credential) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO credentials (label, api_token, refresh_token, app_key, signature_secret, host, session, db_id, session_opened_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id`,
		cred.Label, cred.APIToken, cred.RefreshToken, cred.AppKey, cred.SignatureSecret,
		cred.Host, cred.Session, cred.DBID, cred.SessionOpenedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateLabel
		}
		return 0, err
	}
	return id, nil
}

// UpdateTokens persists a refreshed token pair. An empty refreshToken keeps
// the stored one; the server does not always rotate it.
func (r *PGRepository) UpdateTokens(ctx context.Context, id int64, apiToken, refreshToken string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credentials
		SET api_token = $2,
		    refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		    updated_at = now()
		WHERE id = $1`,
		id, apiToken, refreshToken,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSession persists a host/session pair. They are always written
// together.
func (r *PGRepository) UpdateSession(ctx context.Context, id int64, host, session string, openedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credentials
		SET host = $2, session = $3, session_opened_at = $4, updated_at = now()
		WHERE id = $1`,
		id, host, session, openedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
