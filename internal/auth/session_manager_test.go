package auth

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

type staticTokenProvider struct {
	tokens []string
	index  int
}

func (p *staticTokenProvider) NewToken() (string, error) {
	if p.index >= len(p.tokens) {
		return "", errors.New("exhausted tokens")
	}
	token := p.tokens[p.index]
	p.index++
	return token, nil
}

func newTestManager(t *testing.T, cfg SessionManagerConfig) *SessionManager {
	t.Helper()
	if cfg.Credentials == (Credentials{}) {
		cfg.Credentials = Credentials{User: "admin", Pass: "admin123"}
	}
	manager, err := NewSessionManager(cfg)
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}
	return manager
}

func TestNewSessionManagerRequiresCredentials(t *testing.T) {
	_, err := NewSessionManager(SessionManagerConfig{})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestLoginIssuesTokenWithTTL(t *testing.T) {
	manager := newTestManager(t, SessionManagerConfig{})

	token, expiresIn, err := manager.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if len(token) != 48 {
		t.Fatalf("expected 48 hex chars, got %q", token)
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not hex: %q", token)
	}
	if expiresIn != int64((12 * time.Hour).Seconds()) {
		t.Fatalf("expected 12h in seconds, got %d", expiresIn)
	}
	if err := manager.Validate(token); err != nil {
		t.Fatalf("expected fresh token to validate, got %v", err)
	}
}

func TestLoginRejectsAnyCredentialMismatch(t *testing.T) {
	manager := newTestManager(t, SessionManagerConfig{})

	testCases := []struct {
		name string
		user string
		pass string
	}{
		{name: "wrong-user", user: "root", pass: "admin123"},
		{name: "wrong-pass", user: "admin", pass: "letmein"},
		{name: "both-wrong", user: "root", pass: "letmein"},
		{name: "empty", user: "", pass: ""},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, _, err := manager.Login(testCase.user, testCase.pass)
			if !errors.Is(err, ErrInvalidLogin) {
				t.Fatalf("expected invalid login, got %v", err)
			}
		})
	}
}

func TestLoginNeverReusesTokens(t *testing.T) {
	manager := newTestManager(t, SessionManagerConfig{})

	first, _, err := manager.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	second, _, err := manager.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens, both %q", first)
	}
	if err := manager.Validate(first); err != nil {
		t.Fatalf("expected earlier token to stay valid, got %v", err)
	}
}

func TestValidateExpiresTokensAfterTTL(t *testing.T) {
	current := time.Unix(1700000000, 0).UTC()
	manager := newTestManager(t, SessionManagerConfig{
		Clock:  func() time.Time { return current },
		Tokens: &staticTokenProvider{tokens: []string{"token-1"}},
	})

	token, _, err := manager.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}

	current = current.Add(11*time.Hour + 59*time.Minute)
	if err := manager.Validate(token); err != nil {
		t.Fatalf("expected token valid at T+11h59m, got %v", err)
	}

	current = current.Add(2 * time.Minute)
	if err := manager.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token at T+12h01m, got %v", err)
	}

	// Eviction is a side effect of the expiry check; the token is now unknown.
	if err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token after eviction, got %v", err)
	}
}

func TestValidateTokenKinds(t *testing.T) {
	manager := newTestManager(t, SessionManagerConfig{})

	if err := manager.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
	if err := manager.Validate("   "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token for whitespace, got %v", err)
	}
	if err := manager.Validate("deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
