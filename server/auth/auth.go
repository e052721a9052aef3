package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tidewar/shared/logging"
	"tidewar/shared/protocol"
)

const (
	issuer        = "tidewar"
	matchAudience = "match"
	// GinIdentityKey is where GinRequired stores the caller's Identity.
	GinIdentityKey = "identity"
)

var (
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserExists         = errors.New("auth: username already exists")
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64" json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated caller of a request or socket.
type Identity struct {
	UserID   string
	Username string
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// MatchClaims admit one user to one relay match.
type MatchClaims struct {
	MatchID string `json:"mid"`
	Name    string `json:"name"`
	jwt.RegisteredClaims
}

type Auth struct {
	db         *gorm.DB
	key        []byte
	sessionTTL time.Duration
	matchTTL   time.Duration
}

// New migrates the user table and loads the signing key from dataDir,
// creating one on first start.
func New(db *gorm.DB, dataDir string, sessionTTL, matchTTL time.Duration) (*Auth, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	keyPath := filepath.Join(dataDir, "jwt.key")
	key, err := os.ReadFile(keyPath)
	if err != nil || len(key) < 32 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt key: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, fmt.Errorf("write jwt key: %w", err)
		}
	}
	return NewWithKey(db, key, sessionTTL, matchTTL)
}

func NewWithKey(db *gorm.DB, key []byte, sessionTTL, matchTTL time.Duration) (*Auth, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return &Auth{db: db, key: key, sessionTTL: sessionTTL, matchTTL: matchTTL}, nil
}

// Register creates a user with a bcrypt password hash.
func (a *Auth) Register(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	var n int64
	if err := a.db.Model(&User{}).Where("lower(username) = ?", strings.ToLower(username)).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if n > 0 {
		return nil, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{ID: uuid.NewString(), Username: username, PasswordHash: string(hash), CreatedAt: time.Now()}
	if err := a.db.Create(u).Error; err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// Login checks credentials and returns a session token.
func (a *Auth) Login(username, password string) (string, *User, error) {
	var u User
	err := a.db.Where("lower(username) = ?", strings.ToLower(strings.TrimSpace(username))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := a.IssueSession(Identity{UserID: u.ID, Username: u.Username})
	if err != nil {
		return "", nil, err
	}
	return tok, &u, nil
}

func (a *Auth) IssueSession(id Identity) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Name: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

func (a *Auth) ParseSession(tok string) (Identity, error) {
	if tok == "" {
		return Identity{}, ErrInvalidToken
	}
	var c sessionClaims
	t, err := jwt.ParseWithClaims(tok, &c, a.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer))
	if err != nil || !t.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	// match tokens carry an audience; sessions never do
	if len(c.Audience) > 0 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, Username: c.Name}, nil
}

// IssueMatchToken signs a short-lived ticket for one match.
func (a *Auth) IssueMatchToken(matchID string, id Identity) (string, error) {
	now := time.Now()
	claims := MatchClaims{
		MatchID: matchID,
		Name:    id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{matchAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.matchTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

func (a *Auth) ParseMatchToken(tok string) (MatchClaims, error) {
	var c MatchClaims
	t, err := jwt.ParseWithClaims(tok, &c, a.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(matchAudience))
	if err != nil || !t.Valid || c.MatchID == "" || c.Subject == "" {
		return MatchClaims{}, ErrInvalidToken
	}
	return c, nil
}

func (a *Auth) keyFunc(*jwt.Token) (interface{}, error) { return a.key, nil }

type RegisterReq struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type RegisterResp struct {
	OK     bool   `json:"ok"`
	UserID string `json:"user_id"`
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

func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Username)
	if name == "" || len(name) > 64 || len(req.Password) < 6 || req.Password != req.PasswordConfirm {
		http.Error(w, "invalid username or password mismatch / too short", http.StatusBadRequest)
		return
	}
	u, err := a.Register(name, req.Password)
	switch {
	case errors.Is(err, ErrUserExists):
		http.Error(w, "username already exists", http.StatusConflict)
		return
	case err != nil:
		logging.Error("register failed", err, logging.Fields{"username": name})
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	logging.Info("user registered", logging.Fields{"user": u.ID, "username": u.Username})
	writeJSON(w, RegisterResp{OK: true, UserID: u.ID})
}

func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Version != "" && req.Version != protocol.GameVersion {
		http.Error(w, "version mismatch: server runs "+protocol.GameVersion, http.StatusUpgradeRequired)
		return
	}
	tok, u, err := a.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	case err != nil:
		logging.Error("login failed", err, logging.Fields{"username": req.Username})
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, LoginResp{Token: tok, UserID: u.ID, Username: u.Username})
}

type MeResp struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// HandleMe reports the session's identity. Mount it behind RequireAuth.
func (a *Auth) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, MeResp{UserID: id.UserID, Username: id.Username})
}

// BearerToken reads the token from the Authorization header, falling back to
// the token query parameter for websocket upgrades.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// RequireAuth protects plain net/http handlers.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.ParseSession(BearerToken(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// GinRequired is RequireAuth for gin routes.
func (a *Auth) GinRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.ParseSession(BearerToken(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid session"}})
			return
		}
		c.Set(GinIdentityKey, id)
		c.Next()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
