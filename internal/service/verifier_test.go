package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/token"
)

func issueAccessToken(t *testing.T, codec *token.Codec) string {
	t.Helper()
	client := &core.Client{ID: "web-app", AccessTokenLifetime: time.Hour}
	user := &core.User{ID: "bob", Scope: "user", ServiceID: "smart"}
	signed, _, err := codec.EncodeAccess(client, user)
	if err != nil {
		t.Fatalf("encoding access token: %v", err)
	}
	return signed
}

func TestVerify(t *testing.T) {
	codec := testCodec()
	v := NewVerifier(newSpyStore(), codec)
	signed := issueAccessToken(t, codec)

	auth, err := v.Verify(context.Background(), "Bearer "+signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth.AccessToken != signed {
		t.Error("auth context must carry the verified token")
	}
	if auth.Client.ID != "web-app" {
		t.Errorf("client id = %q, want %q", auth.Client.ID, "web-app")
	}
	if auth.User.ID != "bob" || auth.User.Scope != "user" {
		t.Errorf("user = %+v", auth.User)
	}
	if auth.User.ServiceID == nil || *auth.User.ServiceID != "smart" {
		t.Errorf("serviceId = %v, want smart", auth.User.ServiceID)
	}
}

func TestVerify_Rejections(t *testing.T) {
	codec := testCodec()
	v := NewVerifier(newSpyStore(), codec)
	signed := issueAccessToken(t, codec)

	cases := []struct {
		name          string
		authorization string
		wantCode      string
		wantKind      ErrorKind
	}{
		{name: "empty header", authorization: "", wantCode: CodeNoAuthentication, wantKind: KindInvalidRequest},
		{name: "wrong scheme", authorization: "Basic " + signed, wantCode: CodeNoAuthentication, wantKind: KindInvalidRequest},
		{name: "scheme without token", authorization: "Bearer ", wantCode: CodeNoAuthentication, wantKind: KindInvalidRequest},
		{name: "garbage token", authorization: "Bearer not.a.jwt", wantKind: KindInvalidToken},
		{name: "tampered token", authorization: "Bearer " + signed + "x", wantKind: KindInvalidToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.authorization)
			got := authErr(t, err)
			if got.Kind != tc.wantKind {
				t.Errorf("kind = %q, want %q", got.Kind, tc.wantKind)
			}
			if tc.wantCode != "" && got.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tc.wantCode)
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	codec := testCodec()
	signed := issueAccessToken(t, codec)

	// a verifier whose clock sits past the one-hour lifetime
	late := token.New("test-secret", "test-secret", func() time.Time {
		return testClock().Add(2 * time.Hour)
	})
	v := NewVerifier(newSpyStore(), late)

	_, err := v.Verify(context.Background(), "Bearer "+signed)
	if got := authErr(t, err); got.Kind != KindInvalidToken {
		t.Errorf("kind = %q, want %q", got.Kind, KindInvalidToken)
	}
}

func basicHeader(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

func TestVerifyBasicAuth(t *testing.T) {
	v := NewVerifier(newSpyStore(), testCodec())

	cases := []struct {
		name          string
		authorization string
		wantOK        bool
		wantMsg       string
	}{
		{name: "valid credentials", authorization: basicHeader("web-app", "s3cret"), wantOK: true},
		{name: "empty header", wantMsg: "No authentication given."},
		{name: "bearer scheme", authorization: "Bearer abc", wantMsg: "No authentication given."},
		{name: "broken base64", authorization: "Basic %%%", wantMsg: "No authentication given."},
		{name: "no colon", authorization: "Basic " + base64.StdEncoding.EncodeToString([]byte("justclientid")), wantMsg: "No authentication given."},
		{name: "unknown client", authorization: basicHeader("ghost", "s3cret"), wantMsg: "The client does not match: client is not exist"},
		{name: "wrong secret", authorization: basicHeader("web-app", "wrong"), wantMsg: "The client does not match: client is not match"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := v.VerifyBasicAuth(context.Background(), tc.authorization)
			if res.IsSuccessful != tc.wantOK {
				t.Fatalf("isSuccessful = %v, want %v (%s)", res.IsSuccessful, tc.wantOK, res.ErrorMsg)
			}
			if res.ErrorMsg != tc.wantMsg {
				t.Errorf("errorMsg = %q, want %q", res.ErrorMsg, tc.wantMsg)
			}
		})
	}
}
