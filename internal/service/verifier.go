package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/token"
)

// Verifier checks bearer tokens and Basic credentials presented on
// resource requests.
type Verifier struct {
	store core.CredentialStore
	codec *token.Codec
}

func NewVerifier(store core.CredentialStore, codec *token.Codec) *Verifier {
	return &Verifier{store: store, codec: codec}
}

// Verify validates a bearer Authorization header value and returns the
// authenticated context. The header is the raw value including the
// "Bearer " prefix.
func (v *Verifier) Verify(ctx context.Context, authorization string) (*AuthContext, error) {
	if authorization == "" {
		return nil, invalidRequest(CodeNoAuthentication, "No authentication given.")
	}
	scheme, rest, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || rest == "" {
		return nil, invalidRequest(CodeNoAuthentication, "No authentication given.")
	}

	claims, err := v.codec.DecodeAccess(rest)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("access token rejected")
		return nil, invalidToken(err)
	}

	return &AuthContext{
		AccessToken: rest,
		Client:      AuthContextClient{ID: claims.ClientID},
		User: TokenUser{
			ID:        claims.UserID,
			Scope:     claims.Scope,
			ServiceID: nullableID(claims.ServiceID),
		},
	}, nil
}

// VerifyBasicAuth checks a Basic Authorization header value against the
// client registry. It fails softly: callers present the result uniformly
// regardless of the failure mode.
func (v *Verifier) VerifyBasicAuth(ctx context.Context, authorization string) BasicAuthResult {
	scheme, rest, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Basic") || rest == "" {
		return BasicAuthResult{ErrorMsg: "No authentication given."}
	}

	decoded, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return BasicAuthResult{ErrorMsg: "No authentication given."}
	}
	clientID, clientSecret, found := strings.Cut(string(decoded), ":")
	if !found {
		return BasicAuthResult{ErrorMsg: "No authentication given."}
	}

	if _, err := v.store.GetClient(ctx, clientID, clientSecret); err != nil {
		switch {
		case errors.Is(err, core.ErrClientNotFound):
			return BasicAuthResult{ErrorMsg: "The client does not match: client is not exist"}
		case errors.Is(err, core.ErrClientMismatch):
			return BasicAuthResult{ErrorMsg: "The client does not match: client is not match"}
		default:
			log.Ctx(ctx).Error().Err(err).Msg("client lookup failed during basic auth")
			return BasicAuthResult{ErrorMsg: "failed to resolve client"}
		}
	}
	return BasicAuthResult{IsSuccessful: true}
}
