package core

import (
	"context"
	"errors"
)

// Sentinel errors returned by stores. The service layer maps them onto the
// OAuth error taxonomy; storage internals never leak to callers.
var (
	ErrClientNotFound = errors.New("client does not exist")
	ErrClientMismatch = errors.New("client secret does not match")
	ErrUserNotFound   = errors.New("no matched user exist")
	ErrAppKeyNotFound = errors.New("appKey is not valid")
)

// CredentialStore resolves clients, users and app keys, and persists
// refresh-token associations.
// Implementations: in-memory (store), PostgreSQL (store/pg).
type CredentialStore interface {
	// GetClient resolves a client by id and verifies its secret.
	// Returns ErrClientNotFound or ErrClientMismatch.
	GetClient(ctx context.Context, clientID, clientSecret string) (*Client, error)

	// GetUser resolves a platform user by id and password.
	// Returns ErrUserNotFound when no row matches; closed-account
	// checking is the caller's job.
	GetUser(ctx context.Context, userID, password string) (*User, error)

	// GetServiceUser resolves a service-scoped user by composite identity
	// and password.
	GetServiceUser(ctx context.Context, userID, serviceID, password string) (*User, error)

	// GetUserByID re-resolves the current platform user state without a
	// password. Used at refresh-token redemption.
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// GetServiceUserByID re-resolves the current service user state.
	GetServiceUserByID(ctx context.Context, userID, serviceID string) (*User, error)

	// GetAppKeyAuth resolves the stored login material behind an app key.
	GetAppKeyAuth(ctx context.Context, appKey string) (*AppKeyCredential, error)

	// SaveUserToken persists a refresh token for a platform user.
	SaveUserToken(ctx context.Context, rec RefreshTokenRecord) error

	// SaveServiceUserToken persists a refresh token for a service user.
	SaveServiceUserToken(ctx context.Context, rec RefreshTokenRecord) error

	// SavePushKey registers a push key for a service user.
	SavePushKey(ctx context.Context, rec PushKeyRecord) error

	// HasService reports whether a service (tenant) exists.
	HasService(ctx context.Context, serviceID string) (bool, error)

	// ListActiveTokens returns refresh-token records that have not expired.
	ListActiveTokens(ctx context.Context) ([]RefreshTokenRecord, error)

	// DeleteExpiredTokens removes expired refresh-token records and
	// returns how many were deleted.
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

// TelemetryStore aggregates raw telemetry into sparse, labeled buckets.
// The bucket labels must use the statistics label formats; gap filling
// happens downstream.
type TelemetryStore interface {
	// HasDevice reports whether a device is registered under a service.
	HasDevice(ctx context.Context, serviceID, deviceID string) (bool, error)

	Aggregate(ctx context.Context, q StatisticsQuery) ([]AggregateRow, error)
}

// UserStatsStore provides sparse user-count series per service.
type UserStatsStore interface {
	// CountsByBucket returns per-bucket counts for one statType
	// (join, withdrawal, total).
	CountsByBucket(ctx context.Context, serviceID, statType, startDate, endDate, interval string) ([]CountRow, error)

	// FirstTotalCount returns the running total as of just before the
	// range start, used to seed cumulative series.
	FirstTotalCount(ctx context.Context, serviceID, startDate, interval string) (int64, error)
}
