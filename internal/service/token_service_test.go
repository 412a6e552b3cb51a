package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/token"
)

var testClock = func() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func testCodec() *token.Codec {
	return token.New("test-secret", "test-secret", testClock)
}

// spyStore records every lookup and persistence call so tests can assert
// that request validation happens before any store access.
type spyStore struct {
	clients     map[string]*core.Client
	users       map[string]*core.User // key: "id" or "id/serviceId"
	appKeys     map[string]*core.AppKeyCredential
	saveErr     error
	calls       []string
	savedTokens []core.RefreshTokenRecord
}

func newSpyStore() *spyStore {
	return &spyStore{
		clients: map[string]*core.Client{
			"web-app": {
				ID:                   "web-app",
				Secret:               "s3cret",
				RedirectURIs:         []string{"https://example.com/cb"},
				Grants:               []string{"client_credentials", "password", "refresh_token"},
				AccessTokenLifetime:  time.Hour,
				RefreshTokenLifetime: 14 * 24 * time.Hour,
			},
			"cc-only": {
				ID:                  "cc-only",
				Secret:              "s3cret",
				Grants:              []string{"client_credentials"},
				AccessTokenLifetime: time.Hour,
			},
		},
		users: map[string]*core.User{
			"alice":     {ID: "alice", Name: "Alice", Scope: "user", Status: "1"},
			"closed":    {ID: "closed", Status: core.StatusClosed},
			"bob/smart": {ID: "bob", Scope: "user", Status: "1", ServiceID: "smart"},
			"gone/smart": {
				ID: "gone", Status: core.StatusClosed, ServiceID: "smart",
			},
		},
		appKeys: map[string]*core.AppKeyCredential{
			"valid-app-key": {UserID: "bob", ServiceID: "smart", Password: "pw"},
		},
	}
}

func (s *spyStore) GetClient(ctx context.Context, clientID, clientSecret string) (*core.Client, error) {
	s.calls = append(s.calls, "GetClient")
	c, ok := s.clients[clientID]
	if !ok {
		return nil, core.ErrClientNotFound
	}
	if c.Secret != clientSecret {
		return nil, core.ErrClientMismatch
	}
	return c, nil
}

func (s *spyStore) GetUser(ctx context.Context, userID, password string) (*core.User, error) {
	s.calls = append(s.calls, "GetUser")
	u, ok := s.users[userID]
	if !ok || u.ServiceID != "" || password != "pw" {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (s *spyStore) GetServiceUser(ctx context.Context, userID, serviceID, password string) (*core.User, error) {
	s.calls = append(s.calls, "GetServiceUser")
	u, ok := s.users[userID+"/"+serviceID]
	if !ok || password != "pw" {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (s *spyStore) GetUserByID(ctx context.Context, userID string) (*core.User, error) {
	s.calls = append(s.calls, "GetUserByID")
	u, ok := s.users[userID]
	if !ok || u.ServiceID != "" {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (s *spyStore) GetServiceUserByID(ctx context.Context, userID, serviceID string) (*core.User, error) {
	s.calls = append(s.calls, "GetServiceUserByID")
	u, ok := s.users[userID+"/"+serviceID]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (s *spyStore) GetAppKeyAuth(ctx context.Context, appKey string) (*core.AppKeyCredential, error) {
	s.calls = append(s.calls, "GetAppKeyAuth")
	cred, ok := s.appKeys[appKey]
	if !ok {
		return nil, core.ErrAppKeyNotFound
	}
	return cred, nil
}

func (s *spyStore) SaveUserToken(ctx context.Context, rec core.RefreshTokenRecord) error {
	s.calls = append(s.calls, "SaveUserToken")
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedTokens = append(s.savedTokens, rec)
	return nil
}

func (s *spyStore) SaveServiceUserToken(ctx context.Context, rec core.RefreshTokenRecord) error {
	s.calls = append(s.calls, "SaveServiceUserToken")
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedTokens = append(s.savedTokens, rec)
	return nil
}

func (s *spyStore) SavePushKey(ctx context.Context, rec core.PushKeyRecord) error {
	s.calls = append(s.calls, "SavePushKey")
	return nil
}

func (s *spyStore) HasService(ctx context.Context, serviceID string) (bool, error) {
	s.calls = append(s.calls, "HasService")
	return serviceID == "smart", nil
}

func (s *spyStore) ListActiveTokens(ctx context.Context) ([]core.RefreshTokenRecord, error) {
	return s.savedTokens, nil
}

func (s *spyStore) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	return 0, nil
}

func authErr(t *testing.T, err error) *AuthError {
	t.Helper()
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	return ae
}

func TestIssueToken_ValidationBeforeStore(t *testing.T) {
	cases := []struct {
		name     string
		req      TokenRequest
		wantCode string
	}{
		{
			name:     "missing grant type",
			req:      TokenRequest{ClientID: "web-app", ClientSecret: "s3cret"},
			wantCode: CodeMissingGrantType,
		},
		{
			name:     "unknown grant type",
			req:      TokenRequest{GrantType: "implicit", ClientID: "web-app", ClientSecret: "s3cret"},
			wantCode: CodeGrantNotAcceptable,
		},
		{
			name:     "grant not in allowlist",
			req:      TokenRequest{GrantType: "password", ClientID: "web-app", ClientSecret: "s3cret", Username: "alice", Password: "pw", AllowedGrants: []string{"client_credentials"}},
			wantCode: CodeGrantNotAcceptable,
		},
		{
			name:     "missing client id",
			req:      TokenRequest{GrantType: "client_credentials", ClientSecret: "s3cret"},
			wantCode: CodeMissingClientID,
		},
		{
			name:     "missing client secret",
			req:      TokenRequest{GrantType: "client_credentials", ClientID: "web-app"},
			wantCode: CodeMissingClientSecret,
		},
		{
			name:     "missing username",
			req:      TokenRequest{GrantType: "password", ClientID: "web-app", ClientSecret: "s3cret", Password: "pw"},
			wantCode: CodeMissingUsername,
		},
		{
			name:     "missing password",
			req:      TokenRequest{GrantType: "password", ClientID: "web-app", ClientSecret: "s3cret", Username: "alice"},
			wantCode: CodeMissingPassword,
		},
		{
			name:     "missing refresh token",
			req:      TokenRequest{GrantType: "refresh_token", ClientID: "web-app", ClientSecret: "s3cret"},
			wantCode: CodeMissingRefreshToken,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newSpyStore()
			svc := NewTokenService(store, testCodec(), nil)

			_, err := svc.IssueToken(context.Background(), tc.req)
			if got := authErr(t, err); got.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tc.wantCode)
			}
			if len(store.calls) != 0 {
				t.Errorf("store was called before validation passed: %v", store.calls)
			}
		})
	}
}

func TestIssueToken_ClientResolution(t *testing.T) {
	cases := []struct {
		name    string
		req     TokenRequest
		wantMsg string
	}{
		{
			name:    "unknown client",
			req:     TokenRequest{GrantType: "client_credentials", ClientID: "ghost", ClientSecret: "s3cret"},
			wantMsg: "client is not exist",
		},
		{
			name:    "wrong secret",
			req:     TokenRequest{GrantType: "client_credentials", ClientID: "web-app", ClientSecret: "wrong"},
			wantMsg: "client is not match",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewTokenService(newSpyStore(), testCodec(), nil)

			_, err := svc.IssueToken(context.Background(), tc.req)
			got := authErr(t, err)
			if got.Kind != KindUnauthorizedClient {
				t.Errorf("kind = %q, want %q", got.Kind, KindUnauthorizedClient)
			}
			if !strings.Contains(got.Message, tc.wantMsg) {
				t.Errorf("message = %q, want substring %q", got.Message, tc.wantMsg)
			}
		})
	}
}

func TestIssueToken_ClientGrantAllowlist(t *testing.T) {
	svc := NewTokenService(newSpyStore(), testCodec(), nil)

	_, err := svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    "password",
		ClientID:     "cc-only",
		ClientSecret: "s3cret",
		Username:     "alice",
		Password:     "pw",
	})
	if got := authErr(t, err); got.Kind != KindUnauthorizedClient {
		t.Errorf("kind = %q, want %q", got.Kind, KindUnauthorizedClient)
	}
}

func TestIssueToken_ClientCredentials(t *testing.T) {
	store := newSpyStore()
	svc := NewTokenService(store, testCodec(), nil)

	tok, err := svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "web-app",
		ClientSecret: "s3cret",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if tok.AccessToken == "" {
		t.Error("expected an access token")
	}
	if tok.RefreshToken != "" || tok.RefreshTokenExpiresAt != nil {
		t.Error("client_credentials must not issue a refresh token")
	}
	if want := testClock().Add(time.Hour); !tok.AccessTokenExpiresAt.Equal(want) {
		t.Errorf("access expiry = %v, want %v", tok.AccessTokenExpiresAt, want)
	}
	if tok.User.ID != "" {
		t.Errorf("user id = %q, want empty", tok.User.ID)
	}
	if len(store.savedTokens) != 0 {
		t.Errorf("persisted %d tokens, want 0", len(store.savedTokens))
	}
}

func TestIssueToken_PasswordGrant(t *testing.T) {
	cases := []struct {
		name          string
		username      string
		wantUserID    string
		wantServiceID string
		wantLookup    string
		wantSave      string
	}{
		{
			name:       "platform user",
			username:   "alice",
			wantUserID: "alice",
			wantLookup: "GetUser",
			wantSave:   "SaveUserToken",
		},
		{
			name:          "service user",
			username:      "bob/smart",
			wantUserID:    "bob",
			wantServiceID: "smart",
			wantLookup:    "GetServiceUser",
			wantSave:      "SaveServiceUserToken",
		},
		{
			// two slashes do not parse as a composite identity; the whole
			// string is treated as a platform user id
			name:       "extra slash falls back to platform lookup",
			username:   "a/b/c",
			wantLookup: "GetUser",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newSpyStore()
			svc := NewTokenService(store, testCodec(), nil)

			tok, err := svc.IssueToken(context.Background(), TokenRequest{
				GrantType:    "password",
				ClientID:     "web-app",
				ClientSecret: "s3cret",
				Username:     tc.username,
				Password:     "pw",
			})

			var lookups []string
			for _, c := range store.calls {
				if strings.HasPrefix(c, "Get") && c != "GetClient" {
					lookups = append(lookups, c)
				}
			}
			if diff := cmp.Diff([]string{tc.wantLookup}, lookups); diff != "" {
				t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
			}

			if tc.wantSave == "" {
				if got := authErr(t, err); got.Code != CodeNoMatchedUser {
					t.Errorf("code = %q, want %q", got.Code, CodeNoMatchedUser)
				}
				return
			}
			if err != nil {
				t.Fatalf("IssueToken: %v", err)
			}

			if tok.RefreshToken == "" || tok.RefreshTokenExpiresAt == nil {
				t.Fatal("password grant must issue a refresh token")
			}
			if tok.User.ID != tc.wantUserID {
				t.Errorf("user id = %q, want %q", tok.User.ID, tc.wantUserID)
			}
			if tc.wantServiceID == "" {
				if tok.User.ServiceID != nil {
					t.Errorf("serviceId = %v, want null", *tok.User.ServiceID)
				}
			} else if tok.User.ServiceID == nil || *tok.User.ServiceID != tc.wantServiceID {
				t.Errorf("serviceId = %v, want %q", tok.User.ServiceID, tc.wantServiceID)
			}

			if len(store.savedTokens) != 1 {
				t.Fatalf("persisted %d tokens, want 1", len(store.savedTokens))
			}
			var saved bool
			for _, c := range store.calls {
				if c == tc.wantSave {
					saved = true
				}
			}
			if !saved {
				t.Errorf("calls = %v, want %s", store.calls, tc.wantSave)
			}
			if rec := store.savedTokens[0]; rec.RefreshToken != tok.RefreshToken {
				t.Errorf("persisted token %q does not match issued token", rec.RefreshToken)
			}
		})
	}
}

func TestIssueToken_ClosedAccount(t *testing.T) {
	cases := []struct {
		name string
		req  TokenRequest
	}{
		{
			name: "password grant platform user",
			req:  TokenRequest{GrantType: "password", ClientID: "web-app", ClientSecret: "s3cret", Username: "closed", Password: "pw"},
		},
		{
			name: "password grant service user",
			req:  TokenRequest{GrantType: "password", ClientID: "web-app", ClientSecret: "s3cret", Username: "gone/smart", Password: "pw"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newSpyStore()
			svc := NewTokenService(store, testCodec(), nil)

			_, err := svc.IssueToken(context.Background(), tc.req)
			got := authErr(t, err)
			if got.Code != CodeClosedAccount {
				t.Errorf("code = %q, want %q", got.Code, CodeClosedAccount)
			}
			if len(store.savedTokens) != 0 {
				t.Error("no token may be persisted for a closed account")
			}
		})
	}
}

func TestIssueToken_RefreshGrant(t *testing.T) {
	store := newSpyStore()
	svc := NewTokenService(store, testCodec(), nil)

	issued, err := svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    "password",
		ClientID:     "web-app",
		ClientSecret: "s3cret",
		Username:     "bob/smart",
		Password:     "pw",
	})
	if err != nil {
		t.Fatalf("password grant: %v", err)
	}
	callsBefore := len(store.calls)

	refreshed, err := svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "web-app",
		ClientSecret: "s3cret",
		RefreshToken: issued.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh grant: %v", err)
	}

	// the presented refresh token comes back unchanged with its original
	// expiry and is not persisted again
	if refreshed.RefreshToken != issued.RefreshToken {
		t.Error("refresh grant must return the presented refresh token")
	}
	if !refreshed.RefreshTokenExpiresAt.Equal(*issued.RefreshTokenExpiresAt) {
		t.Errorf("refresh expiry = %v, want %v", refreshed.RefreshTokenExpiresAt, issued.RefreshTokenExpiresAt)
	}
	if refreshed.User.ID != "bob" {
		t.Errorf("user id = %q, want %q", refreshed.User.ID, "bob")
	}
	for _, c := range store.calls[callsBefore:] {
		if strings.HasPrefix(c, "Save") {
			t.Errorf("refresh grant persisted a token: %v", store.calls[callsBefore:])
		}
	}
}

func TestIssueToken_RefreshGrantRejections(t *testing.T) {
	store := newSpyStore()
	svc := NewTokenService(store, testCodec(), nil)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.IssueToken(context.Background(), TokenRequest{
			GrantType:    "refresh_token",
			ClientID:     "web-app",
			ClientSecret: "s3cret",
			RefreshToken: "not.a.jwt",
		})
		if got := authErr(t, err); got.Kind != KindInvalidToken {
			t.Errorf("kind = %q, want %q", got.Kind, KindInvalidToken)
		}
	})

	t.Run("account closed since issuance", func(t *testing.T) {
		issued, err := svc.IssueToken(context.Background(), TokenRequest{
			GrantType:    "password",
			ClientID:     "web-app",
			ClientSecret: "s3cret",
			Username:     "alice",
			Password:     "pw",
		})
		if err != nil {
			t.Fatalf("password grant: %v", err)
		}

		store.users["alice"].Status = core.StatusClosed
		t.Cleanup(func() { store.users["alice"].Status = "1" })

		_, err = svc.IssueToken(context.Background(), TokenRequest{
			GrantType:    "refresh_token",
			ClientID:     "web-app",
			ClientSecret: "s3cret",
			RefreshToken: issued.RefreshToken,
		})
		if got := authErr(t, err); got.Code != CodeClosedAccount {
			t.Errorf("code = %q, want %q", got.Code, CodeClosedAccount)
		}
	})
}

func TestIssueToken_SaveFailure(t *testing.T) {
	store := newSpyStore()
	store.saveErr = errors.New("connection reset")
	svc := NewTokenService(store, testCodec(), nil)

	_, err := svc.IssueToken(context.Background(), TokenRequest{
		GrantType:    "password",
		ClientID:     "web-app",
		ClientSecret: "s3cret",
		Username:     "alice",
		Password:     "pw",
	})
	got := authErr(t, err)
	if got.Kind != KindServerError {
		t.Errorf("kind = %q, want %q", got.Kind, KindServerError)
	}
	if got.Message != "fail to save token" {
		t.Errorf("message = %q, want %q", got.Message, "fail to save token")
	}
}

func TestExchangeAppKey(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := NewTokenService(newSpyStore(), testCodec(), nil)

		res := svc.ExchangeAppKey(context.Background(), AppKeyRequest{
			ClientID:     "web-app",
			ClientSecret: "s3cret",
			AppKey:       "valid-app-key",
		})
		if !res.IsSuccessful {
			t.Fatalf("exchange failed: %s", res.ErrorMsg)
		}
		if res.Token == nil || res.Token.User.ID != "bob" {
			t.Errorf("token user = %+v, want bob", res.Token)
		}
	})

	t.Run("unknown app key", func(t *testing.T) {
		svc := NewTokenService(newSpyStore(), testCodec(), nil)

		res := svc.ExchangeAppKey(context.Background(), AppKeyRequest{
			ClientID:     "web-app",
			ClientSecret: "s3cret",
			AppKey:       "nope",
		})
		if res.IsSuccessful {
			t.Fatal("expected failure")
		}
		if res.ErrorMsg != "appKey is not valid." {
			t.Errorf("errorMsg = %q, want %q", res.ErrorMsg, "appKey is not valid.")
		}
	})

	t.Run("bad client fails before app key lookup", func(t *testing.T) {
		store := newSpyStore()
		svc := NewTokenService(store, testCodec(), nil)

		res := svc.ExchangeAppKey(context.Background(), AppKeyRequest{
			ClientID:     "ghost",
			ClientSecret: "s3cret",
			AppKey:       "valid-app-key",
		})
		if res.IsSuccessful {
			t.Fatal("expected failure")
		}
		for _, c := range store.calls {
			if c == "GetAppKeyAuth" {
				t.Error("app key looked up despite client rejection")
			}
		}
	})
}
