package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/audit"
	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/token"
)

// grantKind is the closed set of supported grant flows. Dispatching on
// the enum instead of the raw string keeps the switch exhaustive.
type grantKind int

const (
	grantClientCredentials grantKind = iota
	grantPassword
	grantRefreshToken
)

var grantKinds = map[string]grantKind{
	core.GrantClientCredentials: grantClientCredentials,
	core.GrantPassword:          grantPassword,
	core.GrantRefreshToken:      grantRefreshToken,
}

// responseGrants is the static grants list embedded in token responses.
var responseGrants = []string{
	core.GrantClientCredentials,
	core.GrantPassword,
	core.GrantRefreshToken,
}

// TokenService is the OAuth grant dispatcher: it validates a token
// request, resolves the principal, and produces a token pair.
type TokenService struct {
	store   core.CredentialStore
	codec   *token.Codec
	auditor core.Auditor
}

func NewTokenService(store core.CredentialStore, codec *token.Codec, auditor core.Auditor) *TokenService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &TokenService{
		store:   store,
		codec:   codec,
		auditor: auditor,
	}
}

// IssueToken executes one grant flow and returns a token pair or a typed
// *AuthError. Request validation fails fast, before any store call.
func (s *TokenService) IssueToken(ctx context.Context, req TokenRequest) (*Token, error) {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	auditEntry := core.AuditEntry{
		ID:        reqID,
		Time:      time.Now(),
		Action:    "token.issue",
		GrantType: req.GrantType,
		ClientID:  req.ClientID,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for token issuance")
		}
	}()

	kind, authErr := parseGrant(req)
	if authErr != nil {
		auditEntry.Error = authErr.Message
		return nil, authErr
	}

	client, err := s.resolveClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		auditEntry.Error = "client authentication failed"
		auditEntry.Stacktrace = err.Error()
		return nil, err
	}
	if !clientAllowsGrant(client, req.GrantType) {
		auditEntry.Error = "grant type not allowed for client"
		return nil, unauthorizedClient("the grant type is not allowed for this client")
	}

	var (
		user         *core.User
		refreshToken string
		refreshExp   time.Time
		issueRefresh bool
	)

	switch kind {
	case grantClientCredentials:
		// anonymous user context, access token only
		user = &core.User{}

	case grantPassword:
		user, err = s.resolveUser(ctx, req.Username, req.Password)
		if err != nil {
			auditEntry.Error = "principal resolution failed"
			auditEntry.Stacktrace = err.Error()
			return nil, err
		}
		issueRefresh = true

	case grantRefreshToken:
		claims, decodeErr := s.codec.DecodeRefresh(req.RefreshToken)
		if decodeErr != nil {
			auditEntry.Error = "refresh token rejected"
			auditEntry.Stacktrace = decodeErr.Error()
			return nil, invalidToken(decodeErr)
		}

		// the signature is trusted for validity; the store lookup only
		// re-resolves the current principal to catch since-closed accounts
		user, err = s.refetchPrincipal(ctx, claims)
		if err != nil {
			auditEntry.Error = "principal re-resolution failed"
			auditEntry.Stacktrace = err.Error()
			return nil, err
		}

		// alwaysIssueNewRefreshToken=false: the presented refresh token
		// is returned unchanged with its original expiry
		refreshToken = req.RefreshToken
		refreshExp = claims.ExpiresAt.Time
	}

	auditEntry.UserID = user.ID
	auditEntry.ServiceID = user.ServiceID
	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", user.ID)
	})

	accessToken, accessExp, err := s.codec.EncodeAccess(client, user)
	if err != nil {
		auditEntry.Error = "access token encoding failed"
		auditEntry.Stacktrace = err.Error()
		return nil, serverError("failed to generate access token", err)
	}
	auditEntry.TokenFingerprint = audit.CalculateFingerprint(accessToken)

	if issueRefresh {
		refreshToken, refreshExp, err = s.codec.EncodeRefresh(client, user)
		if err != nil {
			auditEntry.Error = "refresh token encoding failed"
			auditEntry.Stacktrace = err.Error()
			return nil, serverError("failed to generate refresh token", err)
		}

		rec := core.RefreshTokenRecord{
			ClientID:     client.ID,
			UserID:       user.ID,
			ServiceID:    user.ServiceID,
			RefreshToken: refreshToken,
			IssuedAt:     time.Now(),
			ExpiresAt:    refreshExp,
		}
		if user.ServiceID == "" {
			err = s.store.SaveUserToken(ctx, rec)
		} else {
			err = s.store.SaveServiceUserToken(ctx, rec)
		}
		if err != nil {
			auditEntry.Error = "token persistence failed"
			auditEntry.Stacktrace = err.Error()
			return nil, serverError("fail to save token", err)
		}
	}

	auditEntry.Granted = true

	resp := &Token{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExp,
		TokenType:            "bearer",
		Client: TokenClient{
			ID:           client.ID,
			RedirectURIs: client.RedirectURIs,
			Grants:       responseGrants,
		},
		User: TokenUser{
			ID:        user.ID,
			Scope:     user.Scope,
			ServiceID: nullableID(user.ServiceID),
		},
	}
	if refreshToken != "" {
		resp.RefreshToken = refreshToken
		exp := refreshExp
		resp.RefreshTokenExpiresAt = &exp
	}
	return resp, nil
}

// ExchangeAppKey resolves stored login material for an opaque app key and
// re-enters the password grant. It fails softly with a result object:
// the calling boundary needs uniform handling, so this path never raises.
func (s *TokenService) ExchangeAppKey(ctx context.Context, req AppKeyRequest) AppKeyResult {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	auditEntry := core.AuditEntry{
		ID:       reqID,
		Time:     time.Now(),
		Action:   "appkey.exchange",
		ClientID: req.ClientID,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for app-key exchange")
		}
	}()

	if _, err := s.resolveClient(ctx, req.ClientID, req.ClientSecret); err != nil {
		auditEntry.Error = err.Error()
		return AppKeyResult{ErrorMsg: err.Error()}
	}

	cred, err := s.store.GetAppKeyAuth(ctx, req.AppKey)
	if err != nil {
		auditEntry.Error = "appKey is not valid"
		if !errors.Is(err, core.ErrAppKeyNotFound) {
			auditEntry.Stacktrace = err.Error()
		}
		return AppKeyResult{ErrorMsg: "appKey is not valid."}
	}

	tok, err := s.IssueToken(ctx, TokenRequest{
		GrantType:    core.GrantPassword,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Username:     cred.UserID + "/" + cred.ServiceID,
		Password:     cred.Password,
	})
	if err != nil {
		auditEntry.Error = err.Error()
		return AppKeyResult{ErrorMsg: err.Error()}
	}

	auditEntry.Granted = true
	auditEntry.UserID = cred.UserID
	auditEntry.ServiceID = cred.ServiceID
	return AppKeyResult{IsSuccessful: true, Token: tok}
}

// parseGrant validates the grant type and its required fields. No store
// call happens before this returns nil.
func parseGrant(req TokenRequest) (grantKind, *AuthError) {
	if req.GrantType == "" {
		return 0, invalidRequest(CodeMissingGrantType, "grant_type is missing.")
	}
	kind, ok := grantKinds[req.GrantType]
	if !ok || !grantAcceptable(req) {
		return 0, invalidRequest(CodeGrantNotAcceptable, "The grant_type is not acceptable.")
	}

	if req.ClientID == "" {
		return 0, invalidRequest(CodeMissingClientID, "client_id is missing.")
	}
	if req.ClientSecret == "" {
		return 0, invalidRequest(CodeMissingClientSecret, "client_secret is missing.")
	}

	switch kind {
	case grantPassword:
		if req.Username == "" {
			return 0, invalidRequest(CodeMissingUsername, "username is missing.")
		}
		if req.Password == "" {
			return 0, invalidRequest(CodeMissingPassword, "password is missing.")
		}
	case grantRefreshToken:
		if req.RefreshToken == "" {
			return 0, invalidRequest(CodeMissingRefreshToken, "refresh_token is missing.")
		}
	case grantClientCredentials:
		// client identity alone is sufficient
	}
	return kind, nil
}

func grantAcceptable(req TokenRequest) bool {
	if req.AllowedGrants == nil {
		return true
	}
	for _, g := range req.AllowedGrants {
		if g == req.GrantType {
			return true
		}
	}
	return false
}

func clientAllowsGrant(client *core.Client, grantType string) bool {
	for _, g := range client.Grants {
		if g == grantType {
			return true
		}
	}
	return false
}

func (s *TokenService) resolveClient(ctx context.Context, clientID, clientSecret string) (*core.Client, error) {
	client, err := s.store.GetClient(ctx, clientID, clientSecret)
	switch {
	case err == nil:
		return client, nil
	case errors.Is(err, core.ErrClientNotFound):
		return nil, unauthorizedClient("The client does not match: client is not exist")
	case errors.Is(err, core.ErrClientMismatch):
		return nil, unauthorizedClient("The client does not match: client is not match")
	default:
		return nil, serverError("failed to resolve client", err)
	}
}

// resolveUser looks up the principal for a password grant. A username of
// the form "<id>/<serviceId>" resolves as a service user; anything else
// as a platform user.
func (s *TokenService) resolveUser(ctx context.Context, username, password string) (*core.User, error) {
	var (
		user *core.User
		err  error
	)
	if id, serviceID, ok := splitServiceUsername(username); ok {
		user, err = s.store.GetServiceUser(ctx, id, serviceID, password)
	} else {
		user, err = s.store.GetUser(ctx, username, password)
	}
	return checkPrincipal(user, err)
}

func (s *TokenService) refetchPrincipal(ctx context.Context, claims *token.RefreshClaims) (*core.User, error) {
	var (
		user *core.User
		err  error
	)
	if claims.ServiceID != "" {
		user, err = s.store.GetServiceUserByID(ctx, claims.UserID, claims.ServiceID)
	} else {
		user, err = s.store.GetUserByID(ctx, claims.UserID)
	}
	return checkPrincipal(user, err)
}

func checkPrincipal(user *core.User, err error) (*core.User, error) {
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return nil, invalidClient(CodeNoMatchedUser, "No matched user exist.")
	case err != nil:
		return nil, serverError("failed to resolve user", err)
	case user.Closed():
		return nil, invalidClient(CodeClosedAccount, "This is a closed account.")
	}
	return user, nil
}

func splitServiceUsername(username string) (userID, serviceID string, ok bool) {
	parts := strings.Split(username, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
