// Package pg implements the store ports against PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/goodaegwang/cirrus/internal/config"
	"github.com/goodaegwang/cirrus/internal/core"
)

// Store holds the shared connection pool. It implements the credential,
// telemetry and user statistics ports.
type Store struct {
	db *sql.DB
}

func Open(dsn string, pool config.PoolParams) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ core.CredentialStore = (*Store)(nil)

// verifySecret accepts bcrypt hashes and falls back to a constant
// comparison for legacy plaintext rows.
func verifySecret(stored, presented string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return stored == presented
}

func (s *Store) GetClient(ctx context.Context, clientID, clientSecret string) (*core.Client, error) {
	var (
		c              core.Client
		accessSeconds  int64
		refreshSeconds int64
		userID         sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, secret, redirect_uris, grants,
		       access_token_lifetime, refresh_token_lifetime, user_id
		FROM clients WHERE id = $1`, clientID).
		Scan(&c.ID, &c.Secret, pq.Array(&c.RedirectURIs), pq.Array(&c.Grants),
			&accessSeconds, &refreshSeconds, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}

	if !verifySecret(c.Secret, clientSecret) {
		return nil, core.ErrClientMismatch
	}
	c.AccessTokenLifetime = time.Duration(accessSeconds) * time.Second
	c.RefreshTokenLifetime = time.Duration(refreshSeconds) * time.Second
	c.UserID = userID.String
	return &c, nil
}

func (s *Store) GetUser(ctx context.Context, userID, password string) (*core.User, error) {
	return s.queryUser(ctx, &password, userID, nil)
}

func (s *Store) GetServiceUser(ctx context.Context, userID, serviceID, password string) (*core.User, error) {
	return s.queryUser(ctx, &password, userID, &serviceID)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*core.User, error) {
	return s.queryUser(ctx, nil, userID, nil)
}

func (s *Store) GetServiceUserByID(ctx context.Context, userID, serviceID string) (*core.User, error) {
	return s.queryUser(ctx, nil, userID, &serviceID)
}

// queryUser resolves one user row. A password mismatch is reported the
// same way as a missing row; callers cannot distinguish the two.
func (s *Store) queryUser(ctx context.Context, password *string, userID string, serviceID *string) (*core.User, error) {
	var (
		u      core.User
		svc    sql.NullString
		hashed string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, scope, status, service_id, password FROM users
		WHERE id = $1 AND service_id IS NOT DISTINCT FROM $2`, userID, serviceID).
		Scan(&u.ID, &u.Name, &u.Scope, &u.Status, &svc, &hashed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if password != nil && !verifySecret(hashed, *password) {
		return nil, core.ErrUserNotFound
	}
	u.ServiceID = svc.String
	return &u, nil
}

func (s *Store) GetAppKeyAuth(ctx context.Context, appKey string) (*core.AppKeyCredential, error) {
	var cred core.AppKeyCredential
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, service_id, password FROM app_keys WHERE app_key = $1`, appKey).
		Scan(&cred.UserID, &cred.ServiceID, &cred.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAppKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying app key: %w", err)
	}
	return &cred, nil
}

func (s *Store) SaveUserToken(ctx context.Context, rec core.RefreshTokenRecord) error {
	return s.insertToken(ctx, rec, nil)
}

func (s *Store) SaveServiceUserToken(ctx context.Context, rec core.RefreshTokenRecord) error {
	return s.insertToken(ctx, rec, &rec.ServiceID)
}

func (s *Store) insertToken(ctx context.Context, rec core.RefreshTokenRecord, serviceID *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (client_id, user_id, service_id, refresh_token, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, client_id, service_id) DO UPDATE
		SET refresh_token = EXCLUDED.refresh_token,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at`,
		rec.ClientID, rec.UserID, serviceID, rec.RefreshToken, rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

func (s *Store) SavePushKey(ctx context.Context, rec core.PushKeyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_keys (service_id, user_id, client_id, os, push_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (service_id, user_id, os) DO UPDATE
		SET push_key = EXCLUDED.push_key, client_id = EXCLUDED.client_id`,
		rec.ServiceID, rec.UserID, rec.ClientID, rec.OS, rec.PushKey)
	if err != nil {
		return fmt.Errorf("saving push key: %w", err)
	}
	return nil
}

func (s *Store) HasService(ctx context.Context, serviceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM services WHERE id = $1)`, serviceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking service: %w", err)
	}
	return exists, nil
}

func (s *Store) ListActiveTokens(ctx context.Context) ([]core.RefreshTokenRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, user_id, COALESCE(service_id, ''), refresh_token, issued_at, expires_at
		FROM refresh_tokens WHERE expires_at > now()
		ORDER BY issued_at`)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var records []core.RefreshTokenRecord
	for rows.Next() {
		var rec core.RefreshTokenRecord
		if err := rows.Scan(&rec.ClientID, &rec.UserID, &rec.ServiceID,
			&rec.RefreshToken, &rec.IssuedAt, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return res.RowsAffected()
}
