package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/api/presenter"
	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/service"
)

// handleToken processes token requests for every grant type.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !requireForm(w, r) {
		return
	}
	clientID, clientSecret, ok := basicCredentials(w, r)
	if !ok {
		return
	}

	req := service.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		RefreshToken: r.PostFormValue("refresh_token"),
	}

	tok, err := s.tokenService.IssueToken(ctx, req)
	s.metrics.CountTokenIssued(req.GrantType, err == nil)
	if err != nil {
		logger.Warn().Err(err).Str("grant_type", req.GrantType).Msg("token request denied")
		presenter.Err(w, r, err, "token request failed")
		return
	}

	logger.Info().Str("grant_type", req.GrantType).Msg("token issued successfully")
	presenter.JSON(w, r, tok, http.StatusOK)
}

// handleServiceToken processes token requests scoped to one service
// (tenant). Only user-bound grants are accepted here, and a device push
// key can be registered in the same request.
func (s *Server) handleServiceToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !requireForm(w, r) {
		return
	}
	clientID, clientSecret, ok := basicCredentials(w, r)
	if !ok {
		return
	}
	serviceID := r.PathValue("serviceId")

	req := service.TokenRequest{
		GrantType:     r.PostFormValue("grant_type"),
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Username:      r.PostFormValue("username"),
		Password:      r.PostFormValue("password"),
		RefreshToken:  r.PostFormValue("refresh_token"),
		AllowedGrants: []string{core.GrantPassword, core.GrantRefreshToken},
	}

	exists, err := s.store.HasService(ctx, serviceID)
	if err != nil {
		logger.Error().Err(err).Msg("service lookup failed")
		presenter.Error(w, r, "failed to resolve service", http.StatusInternalServerError)
		return
	}
	if !exists {
		presenter.Error(w, r, "The service does not exist.", http.StatusNotFound)
		return
	}

	// the service user logs in with its bare id; the composite identity
	// is formed from the route
	userID := req.Username
	if req.GrantType == core.GrantPassword && req.Username != "" {
		req.Username = req.Username + "/" + serviceID
	}

	tok, err := s.tokenService.IssueToken(ctx, req)
	s.metrics.CountTokenIssued(req.GrantType, err == nil)
	if err != nil {
		logger.Warn().Err(err).Str("grant_type", req.GrantType).Msg("service token request denied")
		presenter.Err(w, r, err, "token request failed")
		return
	}

	if pushKey := r.PostFormValue("pushkey"); pushKey != "" {
		osName := r.PostFormValue("os")
		if osName == "" {
			presenter.CodedError(w, r, service.CodeMissingOS, "os is missing.", http.StatusBadRequest)
			return
		}
		err := s.store.SavePushKey(ctx, core.PushKeyRecord{
			ServiceID: serviceID,
			UserID:    userID,
			ClientID:  clientID,
			OS:        osName,
			PushKey:   pushKey,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to save push key")
			presenter.Error(w, r, "failed to save push key", http.StatusInternalServerError)
			return
		}
	}

	logger.Info().
		Str("grant_type", req.GrantType).
		Str("service_id", serviceID).
		Msg("service token issued successfully")
	presenter.JSON(w, r, tok, http.StatusOK)
}

// handleAppKey exchanges an opaque app key for a token pair.
func (s *Server) handleAppKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !requireForm(w, r) {
		return
	}
	clientID, clientSecret, ok := basicCredentials(w, r)
	if !ok {
		return
	}

	appKey := r.PostFormValue("appKey")
	if appKey == "" {
		presenter.CodedError(w, r, service.CodeMissingAppKey, "appKey is missing.", http.StatusBadRequest)
		return
	}

	result := s.tokenService.ExchangeAppKey(ctx, service.AppKeyRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AppKey:       appKey,
	})
	s.metrics.CountTokenIssued("app_key", result.IsSuccessful)
	if !result.IsSuccessful {
		logger.Warn().Str("error", result.ErrorMsg).Msg("app key exchange denied")
		presenter.Error(w, r, result.ErrorMsg, http.StatusUnauthorized)
		return
	}

	logger.Info().Msg("app key exchanged successfully")
	presenter.JSON(w, r, result.Token, http.StatusOK)
}

// handleVerification verifies a presented bearer token and returns the
// authenticated context.
func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		presenter.CodedError(w, r, service.CodeNoAuthentication, "No authentication given.", http.StatusBadRequest)
		return
	}

	// a Basic header verifies client identity only, for callers that have
	// no user session yet
	if strings.HasPrefix(authorization, "Basic ") {
		result := s.verifier.VerifyBasicAuth(ctx, authorization)
		if !result.IsSuccessful {
			presenter.Error(w, r, result.ErrorMsg, http.StatusUnauthorized)
			return
		}
		presenter.JSON(w, r, result, http.StatusOK)
		return
	}

	auth, err := s.verifier.Verify(ctx, authorization)
	s.metrics.CountVerification(err == nil)
	if err != nil {
		logger.Debug().Err(err).Msg("token verification failed")
		presenter.Err(w, r, err, "token verification failed")
		return
	}

	presenter.JSON(w, r, auth, http.StatusOK)
}
