package token

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goodaegwang/cirrus/internal/core"
)

var testClient = &core.Client{
	ID:                   "web-client",
	AccessTokenLifetime:  time.Hour,
	RefreshTokenLifetime: 14 * 24 * time.Hour,
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCodec_RoundTrip(t *testing.T) {
	issued := time.Date(2019, 4, 10, 12, 0, 0, 0, time.UTC)
	c := New("sign-secret", "sign-secret", fixedClock(issued))

	user := &core.User{ID: "abc", Scope: "owner", ServiceID: "SVC123"}

	signed, exp, err := c.EncodeAccess(testClient, user)
	if err != nil {
		t.Fatalf("EncodeAccess() error = %v", err)
	}
	if want := issued.Add(time.Hour); !exp.Equal(want) {
		t.Errorf("expiry = %v, want %v", exp, want)
	}

	claims, err := c.DecodeAccess(signed)
	if err != nil {
		t.Fatalf("DecodeAccess() error = %v", err)
	}
	if claims.ClientID != "web-client" || claims.UserID != "abc" ||
		claims.ServiceID != "SVC123" || claims.Scope != "owner" {
		t.Errorf("decoded claims = %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Errorf("decoded exp = %v, want %v", claims.ExpiresAt.Time, exp)
	}

	// decoding again yields the same fields, no state is touched
	again, err := c.DecodeAccess(signed)
	if err != nil {
		t.Fatalf("second DecodeAccess() error = %v", err)
	}
	if diff := cmp.Diff(claims, again); diff != "" {
		t.Errorf("second decode mismatch (-first +second):\n%s", diff)
	}
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	issued := time.Date(2019, 4, 10, 12, 0, 0, 0, time.UTC)
	enc := New("s3cret", "s3cret", fixedClock(issued))

	signed, _, err := enc.EncodeAccess(testClient, &core.User{ID: "abc"})
	if err != nil {
		t.Fatalf("EncodeAccess() error = %v", err)
	}

	tests := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{"just before expiry", issued.Add(time.Hour - time.Second), false},
		{"just after expiry", issued.Add(time.Hour + time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := New("s3cret", "s3cret", fixedClock(tt.now))
			_, err := dec.DecodeAccess(signed)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeAccess() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodec_BadInput(t *testing.T) {
	issued := time.Date(2019, 4, 10, 12, 0, 0, 0, time.UTC)
	c := New("right-secret", "right-secret", fixedClock(issued))

	other := New("wrong-secret", "wrong-secret", fixedClock(issued))
	forged, _, err := other.EncodeAccess(testClient, &core.User{ID: "abc"})
	if err != nil {
		t.Fatalf("EncodeAccess() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong signature", forged},
		{"malformed", "not.a.jwt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.DecodeAccess(tt.token); err == nil {
				t.Errorf("DecodeAccess(%q) expected error", tt.token)
			}
		})
	}
}

func TestCodec_RefreshClaimsOmitScope(t *testing.T) {
	issued := time.Date(2019, 4, 10, 12, 0, 0, 0, time.UTC)
	c := New("secret", "secret", fixedClock(issued))

	signed, exp, err := c.EncodeRefresh(testClient, &core.User{ID: "abc", Scope: "owner", ServiceID: "SVC123"})
	if err != nil {
		t.Fatalf("EncodeRefresh() error = %v", err)
	}
	if want := issued.Add(14 * 24 * time.Hour); !exp.Equal(want) {
		t.Errorf("expiry = %v, want %v", exp, want)
	}

	claims, err := c.DecodeRefresh(signed)
	if err != nil {
		t.Fatalf("DecodeRefresh() error = %v", err)
	}
	if claims.UserID != "abc" || claims.ServiceID != "SVC123" || claims.ClientID != "web-client" {
		t.Errorf("decoded claims = %+v", claims)
	}
}
