// Package metarpc calls the auth endpoints and meta-game RPCs.
package metarpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tidewar/shared/protocol"
)

var ErrVersionMismatch = errors.New("metarpc: client version rejected by server, update the game")

// Error is a failed call. Code is set when the server sent a coded body.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

type RegisterReq struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Version  string `json:"version"`
}

type LoginResp struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(base string) *Client {
	return &Client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) Token() string { return c.token }

// SetToken installs a session token obtained elsewhere.
func (c *Client) SetToken(tok string) { c.token = tok }

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusUpgradeRequired {
		return ErrVersionMismatch
	}
	if resp.StatusCode >= http.StatusBadRequest {
		e := &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var coded protocol.RPCErrorResp
		if json.Unmarshal(data, &coded) == nil && coded.Error.Code != "" {
			e.Code, e.Message = coded.Error.Code, coded.Error.Message
		}
		return e
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func postJSON[Res any](ctx context.Context, c *Client, path string, body any) (Res, error) {
	var res Res
	err := c.do(ctx, http.MethodPost, path, body, &res)
	return res, err
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/register", RegisterReq{Username: username, Password: password, PasswordConfirm: password}, nil)
}

// Login stores the session token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResp, error) {
	out, err := postJSON[LoginResp](ctx, c, "/auth/login", LoginReq{Username: username, Password: password, Version: protocol.GameVersion})
	if err != nil {
		return out, err
	}
	c.token = out.Token
	return out, nil
}

// LoginOrRegister registers the account when the login is refused.
func (c *Client) LoginOrRegister(ctx context.Context, username, password string) (LoginResp, error) {
	out, err := c.Login(ctx, username, password)
	var e *Error
	if !errors.As(err, &e) || e.Status != http.StatusUnauthorized {
		return out, err
	}
	if err := c.Register(ctx, username, password); err != nil {
		return out, fmt.Errorf("register %s: %w", username, err)
	}
	return c.Login(ctx, username, password)
}

func rpc[Res any](ctx context.Context, c *Client, id string, body any) (Res, error) {
	return postJSON[Res](ctx, c, "/rpc/"+id, body)
}

func (c *Client) LoadUserCards(ctx context.Context) (protocol.UserCards, error) {
	return rpc[protocol.UserCards](ctx, c, protocol.RPCLoadUserCards, struct{}{})
}

func (c *Client) SwapDeckCard(ctx context.Context, deckCardID, collectionCardID string) (protocol.UserCards, error) {
	return rpc[protocol.UserCards](ctx, c, protocol.RPCSwapDeckCard, protocol.SwapDeckCardReq{DeckCardID: deckCardID, CollectionCardID: collectionCardID})
}

func (c *Client) UpgradeCard(ctx context.Context, cardID string) (protocol.UserCards, error) {
	return rpc[protocol.UserCards](ctx, c, protocol.RPCUpgradeCard, protocol.UpgradeCardReq{CardID: cardID})
}

func (c *Client) HandleMatchEnd(ctx context.Context, req protocol.MatchEndReq) (protocol.MatchEndResp, error) {
	return rpc[protocol.MatchEndResp](ctx, c, protocol.RPCHandleMatchEnd, req)
}

func (c *Client) Profile(ctx context.Context) (protocol.Profile, error) {
	var p protocol.Profile
	err := c.do(ctx, http.MethodGet, "/rpc/profile", nil, &p)
	return p, err
}
