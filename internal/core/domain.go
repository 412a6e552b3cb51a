package core

import "time"

// Grant type identifiers as they appear on the wire.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// StatusClosed marks a withdrawn account. Authentication must be rejected.
const StatusClosed = "4"

// Client identifies an API consumer. Looked up per token request,
// immutable once issued.
type Client struct {
	// ID is the public client identifier.
	ID string

	// Secret is the client secret. Depending on the store this is a
	// bcrypt hash or a legacy plaintext value; it is opaque here and
	// compared by the store itself.
	Secret string

	// RedirectURIs echoed back in the token response.
	RedirectURIs []string

	// Grants lists the grant types this client may use.
	Grants []string

	// AccessTokenLifetime determines access token expiry (exp = iat + lifetime).
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime determines refresh token expiry.
	RefreshTokenLifetime time.Duration

	// UserID optionally binds the client to a platform user.
	UserID string
}

// User is the authenticated principal behind a token: either a platform
// user (ServiceID empty) or a tenant-scoped service user.
type User struct {
	ID     string
	Name   string
	Scope  string
	Status string

	// ServiceID scopes the user to one service (tenant). Empty for
	// platform users. A service user's identity is the composite
	// (ID, ServiceID).
	ServiceID string
}

// Closed reports whether the account has been withdrawn.
func (u *User) Closed() bool {
	return u.Status == StatusClosed
}

// AppKeyCredential is the stored login material behind an opaque app key.
type AppKeyCredential struct {
	UserID    string
	ServiceID string
	Password  string
}

// RefreshTokenRecord associates a refresh token with its owner. Written at
// issuance; redemption decodes the token itself and only re-resolves the
// current principal, so the record is never read back on that path.
type RefreshTokenRecord struct {
	ClientID     string
	UserID       string
	ServiceID    string // empty for platform users
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// PushKeyRecord registers a device push key for a service user.
type PushKeyRecord struct {
	ServiceID string
	UserID    string
	ClientID  string
	OS        string
	PushKey   string
}

// AggregateRow is one sparse bucket of pre-aggregated telemetry, keyed by
// its formatted bucket label. Values maps unit number to the aggregate.
type AggregateRow struct {
	Date   string
	Values map[string]float64
}

// CountRow is one sparse bucket of a user-count series.
type CountRow struct {
	Date string
	Cnt  int64
}

// StatisticsQuery describes a telemetry statistics request.
type StatisticsQuery struct {
	ServiceID   string
	DeviceID    string
	UnitNumbers []string
	DataType    string // min, max, avg, sum, count, raw
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
	Interval    string // e.g. "1h", "15m", "1d", "1w", "1M"
	TimeOffset  int    // hours from UTC
}
