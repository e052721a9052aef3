package metarpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"tidewar/server/auth"
	"tidewar/server/meta"
	"tidewar/shared/game/types"
	"tidewar/shared/protocol"
)

// backend serves the same routes as the server binary over in-memory sqlite.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := meta.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	a, err := auth.NewWithKey(db, []byte("test-key"), time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	svc, err := meta.NewService(db, nil, types.DefaultRules())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	r := mux.NewRouter()
	r.HandleFunc("/auth/register", a.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", a.HandleLogin).Methods(http.MethodPost)
	r.PathPrefix("/rpc/").Handler(meta.NewHandler(svc).Router(a.GinRequired()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginOrRegisterThenRPCs(t *testing.T) {
	ctx := context.Background()
	c := New(backend(t).URL + "/")

	if _, err := c.LoadUserCards(ctx); err == nil {
		t.Fatalf("anonymous rpc succeeded")
	}
	resp, err := c.LoginOrRegister(ctx, "amy", "hunter22")
	if err != nil || resp.Token == "" || c.Token() != resp.Token {
		t.Fatalf("login = %+v, %v", resp, err)
	}

	cards, err := c.LoadUserCards(ctx)
	if err != nil || len(cards.Deck) != types.DefaultRules().DeckSize {
		t.Fatalf("cards = %+v, %v", cards, err)
	}
	swapped, err := c.SwapDeckCard(ctx, cards.Deck[0].ID, cards.Collection[0].ID)
	if err != nil || swapped.Deck[0].ID != cards.Collection[0].ID {
		t.Fatalf("swap = %+v, %v", swapped.Deck, err)
	}

	_, err = c.UpgradeCard(ctx, "missing")
	var e *Error
	if !errors.As(err, &e) || e.Status != http.StatusNotFound || e.Code != "NOT_FOUND" {
		t.Fatalf("upgrade missing: %v", err)
	}

	end, err := c.HandleMatchEnd(ctx, protocol.MatchEndReq{MatchID: "m1", Placement: 1, DurationSeconds: 60, TowersDestroyed: 1})
	if err != nil || end.GemsAwarded == 0 {
		t.Fatalf("match end = %+v, %v", end, err)
	}
	p, err := c.Profile(ctx)
	if err != nil || p.Wins != 1 || p.Gems != cards.Gems+end.GemsAwarded {
		t.Fatalf("profile = %+v, %v", p, err)
	}

	again := New(c.base)
	if _, err := again.LoginOrRegister(ctx, "amy", "hunter22"); err != nil {
		t.Fatalf("second login: %v", err)
	}
}

func TestVersionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "version mismatch", http.StatusUpgradeRequired)
	}))
	defer srv.Close()
	if _, err := New(srv.URL).Login(context.Background(), "amy", "pw"); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("login error = %v", err)
	}
}
