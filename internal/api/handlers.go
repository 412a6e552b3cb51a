package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/goodaegwang/cirrus/internal/api/presenter"
	"github.com/goodaegwang/cirrus/internal/buildinfo"
	"github.com/goodaegwang/cirrus/internal/service"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// requireForm rejects token requests that are not form-encoded.
func requireForm(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		presenter.Error(w, r, "Content-type must be x-www-form-urlencoded.", http.StatusUnsupportedMediaType)
		return false
	}
	return true
}

// basicCredentials extracts the client credential pair from the Basic
// Authorization header. An absent, malformed or empty pair fails with
// AUTH401; finer-grained missing-field codes never apply to header auth.
func basicCredentials(w http.ResponseWriter, r *http.Request) (clientID, clientSecret string, ok bool) {
	fail := func() (string, string, bool) {
		presenter.CodedError(w, r, service.CodeNoAuthentication, "No authentication given.", http.StatusBadRequest)
		return "", "", false
	}

	authorization := r.Header.Get("Authorization")
	if !strings.HasPrefix(authorization, "Basic ") {
		return fail()
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authorization, "Basic "))
	if err != nil {
		return fail()
	}
	clientID, clientSecret, found := strings.Cut(string(decoded), ":")
	if !found || clientID == "" || clientSecret == "" {
		return fail()
	}
	return clientID, clientSecret, true
}
