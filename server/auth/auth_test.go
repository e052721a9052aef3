package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tidewar/shared/protocol"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	a, err := NewWithKey(db, bytes.Repeat([]byte{7}, 32), time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("NewWithKey: %v", err)
	}
	return a
}

func post(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b)))
	return rec
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	a := newTestAuth(t)
	rec := post(t, a.HandleRegister, RegisterReq{Username: "Amy", Password: "secret1", PasswordConfirm: "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	if rec := post(t, a.HandleRegister, RegisterReq{Username: "amy", Password: "secret1", PasswordConfirm: "secret1"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rec.Code)
	}

	rec = post(t, a.HandleLogin, LoginReq{Username: "AMY", Password: "secret1", Version: protocol.GameVersion})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var out LoginResp
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	id, err := a.ParseSession(out.Token)
	if err != nil || id.UserID != out.UserID || id.Username != "Amy" {
		t.Fatalf("session = %+v, %v", id, err)
	}
}

func TestLoginRejects(t *testing.T) {
	a := newTestAuth(t)
	if _, err := a.Register("bob", "hunter22"); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		req  LoginReq
		want int
	}{
		{LoginReq{Username: "bob", Password: "wrong"}, http.StatusUnauthorized},
		{LoginReq{Username: "carl", Password: "hunter22"}, http.StatusUnauthorized},
		{LoginReq{Username: "bob", Password: "hunter22", Version: "0.0.1"}, http.StatusUpgradeRequired},
	}
	for _, tc := range cases {
		if rec := post(t, a.HandleLogin, tc.req); rec.Code != tc.want {
			t.Fatalf("%+v: got %d want %d", tc.req, rec.Code, tc.want)
		}
	}
}

func TestMatchTokenIsNotASession(t *testing.T) {
	a := newTestAuth(t)
	id := Identity{UserID: "u1", Username: "amy"}
	mt, err := a.IssueMatchToken("m1", id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ParseSession(mt); err == nil {
		t.Fatalf("match token accepted as session")
	}
	c, err := a.ParseMatchToken(mt)
	if err != nil || c.MatchID != "m1" || c.Subject != "u1" {
		t.Fatalf("match claims = %+v, %v", c, err)
	}
	st, _ := a.IssueSession(id)
	if _, err := a.ParseMatchToken(st); err == nil {
		t.Fatalf("session accepted as match token")
	}
}

func TestRequireAuthInjectsIdentity(t *testing.T) {
	a := newTestAuth(t)
	tok, _ := a.IssueSession(Identity{UserID: "u9", Username: "zed"})
	var got Identity
	h := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil))
	if rec.Code != http.StatusOK || got.UserID != "u9" {
		t.Fatalf("query token: %d %+v", rec.Code, got)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer nonsense")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}
}

func TestHandleMeReportsSessionIdentity(t *testing.T) {
	a := newTestAuth(t)
	u, err := a.Register("mira", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	tok, _, err := a.Login("mira", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	h := a.RequireAuth(http.HandlerFunc(a.HandleMe))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)
	var me MeResp
	if err := json.NewDecoder(rec.Body).Decode(&me); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("me: %d %v", rec.Code, err)
	}
	if me.UserID != u.ID || me.Username != "mira" {
		t.Fatalf("me = %+v, want %s/mira", me, u.ID)
	}

	rec = httptest.NewRecorder()
	a.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without identity: %d", rec.Code)
	}
}
