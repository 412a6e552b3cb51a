package validation

import (
	"strings"
	"testing"
	"time"
)

func TestValidateClients(t *testing.T) {
	cases := []struct {
		name    string
		clients []SeedClient
		wantErr string
	}{
		{
			name: "valid",
			clients: []SeedClient{
				{ID: "web-app", Secret: "s3cret", Grants: []string{"password"}},
			},
		},
		{
			name:    "missing id",
			clients: []SeedClient{{Secret: "s3cret", Grants: []string{"password"}}},
			wantErr: "missing id",
		},
		{
			name: "duplicate id",
			clients: []SeedClient{
				{ID: "web-app", Secret: "a", Grants: []string{"password"}},
				{ID: "web-app", Secret: "b", Grants: []string{"password"}},
			},
			wantErr: "not unique",
		},
		{
			name:    "missing secret",
			clients: []SeedClient{{ID: "web-app", Grants: []string{"password"}}},
			wantErr: "missing secret",
		},
		{
			name:    "no grants",
			clients: []SeedClient{{ID: "web-app", Secret: "s3cret"}},
			wantErr: "no grants",
		},
		{
			name:    "unknown grant",
			clients: []SeedClient{{ID: "web-app", Secret: "s3cret", Grants: []string{"implicit"}}},
			wantErr: "unknown grant",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateClients(tc.clients)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateClients: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateClients_LifetimeDefaults(t *testing.T) {
	clients, err := ValidateClients([]SeedClient{
		{ID: "web-app", Secret: "s3cret", Grants: []string{"password"}},
		{ID: "short", Secret: "s3cret", Grants: []string{"password"}, AccessTokenLifetime: 5 * time.Minute},
	})
	if err != nil {
		t.Fatalf("ValidateClients: %v", err)
	}

	if got := clients[0].AccessTokenLifetime; got != DefaultAccessTokenLifetime {
		t.Errorf("defaulted access lifetime = %v, want %v", got, DefaultAccessTokenLifetime)
	}
	if got := clients[0].RefreshTokenLifetime; got != DefaultRefreshTokenLifetime {
		t.Errorf("defaulted refresh lifetime = %v, want %v", got, DefaultRefreshTokenLifetime)
	}
	if got := clients[1].AccessTokenLifetime; got != 5*time.Minute {
		t.Errorf("explicit access lifetime = %v, want 5m", got)
	}
}
