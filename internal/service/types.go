package service

import "time"

// TokenRequest carries one already-extracted token request. The handler
// has decomposed the Basic header into ClientID/ClientSecret and checked
// that authentication was given at all; everything else is validated here.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string

	// password grant
	Username string
	Password string

	// refresh_token grant
	RefreshToken string

	// AllowedGrants restricts which grant types this endpoint accepts.
	// nil means all supported grants.
	AllowedGrants []string
}

// AppKeyRequest is the proprietary app-key exchange: an opaque key stands
// in for username/password.
type AppKeyRequest struct {
	ClientID     string
	ClientSecret string
	AppKey       string
}

type TokenClient struct {
	ID           string   `json:"id"`
	RedirectURIs []string `json:"redirectUris"`
	Grants       []string `json:"grants"`
}

type TokenUser struct {
	ID        string  `json:"id"`
	Scope     string  `json:"scope,omitempty"`
	ServiceID *string `json:"serviceId"`
}

// Token is the success payload of a token request.
type Token struct {
	AccessToken           string      `json:"accessToken"`
	AccessTokenExpiresAt  time.Time   `json:"accessTokenExpiresAt"`
	RefreshToken          string      `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt *time.Time  `json:"refreshTokenExpiresAt,omitempty"`
	TokenType             string      `json:"tokenType"`
	Client                TokenClient `json:"client"`
	User                  TokenUser   `json:"user"`
}

// AuthContext is attached to a request after bearer verification and
// consumed by downstream resource handlers.
type AuthContext struct {
	AccessToken string            `json:"accessToken"`
	Client      AuthContextClient `json:"client"`
	User        TokenUser         `json:"user"`
}

type AuthContextClient struct {
	ID string `json:"id"`
}

// BasicAuthResult is the soft-failure shape of VerifyBasicAuth. Callers
// need a uniform 401 response, so this path never returns an error value.
type BasicAuthResult struct {
	IsSuccessful bool   `json:"isSuccessful"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
}

// AppKeyResult is the soft-failure shape of the app-key exchange.
type AppKeyResult struct {
	IsSuccessful bool   `json:"isSuccessful"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
	Token        *Token `json:"token,omitempty"`
}
