package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	defaultSessionTTL = 12 * time.Hour
	tokenByteLength   = 24
)

var (
	// ErrMissingCredentials indicates the manager was built without an admin account.
	ErrMissingCredentials = errors.New("auth: admin credentials required")
	// ErrInvalidLogin indicates a username or password mismatch. Callers get
	// the same error either way.
	ErrInvalidLogin = errors.New("auth: invalid login")
	// ErrMissingToken indicates no bearer token was presented.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken indicates a token unknown to the session store.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken indicates a token past its expiry. The token is evicted
	// as a side effect of the check.
	ErrExpiredToken = errors.New("auth: expired token")
)

// Credentials holds the single fixed admin account.
type Credentials struct {
	User string
	Pass string
}

// TokenProvider issues opaque session tokens.
type TokenProvider interface {
	NewToken() (string, error)
}

type randomTokenProvider struct{}

// NewRandomTokenProvider constructs a TokenProvider backed by crypto/rand.
// Tokens are 48 lowercase hex characters (192 bits of entropy).
func NewRandomTokenProvider() TokenProvider {
	return &randomTokenProvider{}
}

func (p *randomTokenProvider) NewToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SessionManagerConfig describes how admin sessions are minted and checked.
type SessionManagerConfig struct {
	Credentials Credentials
	SessionTTL  time.Duration
	Clock       func() time.Time
	Tokens      TokenProvider
}

// SessionManager owns the in-memory token store for the single admin account.
// Sessions live until expiry or process exit; logout is client-side token
// discard only.
type SessionManager struct {
	credentials Credentials
	sessionTTL  time.Duration
	clock       func() time.Time
	tokens      TokenProvider

	mu       sync.Mutex
	sessions map[string]time.Time
}

// NewSessionManager constructs a SessionManager with sane defaults.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if strings.TrimSpace(cfg.Credentials.User) == "" || cfg.Credentials.Pass == "" {
		return nil, ErrMissingCredentials
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewRandomTokenProvider()
	}

	return &SessionManager{
		credentials: cfg.Credentials,
		sessionTTL:  ttl,
		clock:       clock,
		tokens:      tokens,
		sessions:    make(map[string]time.Time),
	}, nil
}

// Login checks the supplied credentials and mints a fresh session token with
// its remaining lifetime in whole seconds. Prior tokens stay valid until
// their own expiry.
func (m *SessionManager) Login(user, pass string) (string, int64, error) {
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.credentials.User))
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.credentials.Pass))
	if userMatch&passMatch != 1 {
		return "", 0, ErrInvalidLogin
	}

	token, err := m.tokens.NewToken()
	if err != nil {
		return "", 0, err
	}

	expiresAt := m.clock().Add(m.sessionTTL)

	m.mu.Lock()
	m.sessions[token] = expiresAt
	m.mu.Unlock()

	return token, int64(m.sessionTTL.Seconds()), nil
}

// Validate checks that the token identifies a live session. The presence and
// expiry checks happen under one lock so two concurrent requests cannot both
// observe a not-yet-evicted expired token.
func (m *SessionManager) Validate(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.sessions[token]
	if !ok {
		return ErrInvalidToken
	}
	if m.clock().After(expiresAt) {
		delete(m.sessions, token)
		return ErrExpiredToken
	}
	return nil
}
