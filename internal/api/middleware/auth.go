package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/api/presenter"
	"github.com/goodaegwang/cirrus/internal/service"
)

const authContextKey = "auth_context"

// AuthCtx retrieves the verified bearer context from the request context.
// Nil means the request carried no valid access token.
func AuthCtx(ctx context.Context) *service.AuthContext {
	auth, ok := ctx.Value(authContextKey).(*service.AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// BearerAuth verifies a bearer token when one is presented and attaches
// the result to the request context. Verification failure does not stop
// the request; handlers that need a principal check AuthCtx themselves.
func BearerAuth(verifier *service.Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := r.Header.Get("Authorization")
			if strings.HasPrefix(authorization, "Bearer ") {
				auth, err := verifier.Verify(r.Context(), authorization)
				if err != nil {
					log.Ctx(r.Context()).Debug().Err(err).Msg("bearer token rejected")
				} else {
					ctx := context.WithValue(r.Context(), authContextKey, auth)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope gates a subtree on an authenticated principal holding the
// given scope.
func RequireScope(scope string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := AuthCtx(r.Context())
			if auth == nil {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}
			if !hasScope(auth.User.Scope, scope) {
				presenter.Error(w, r, "insufficient privileges", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasScope(granted, required string) bool {
	for _, s := range strings.Fields(granted) {
		if s == required {
			return true
		}
	}
	return false
}
