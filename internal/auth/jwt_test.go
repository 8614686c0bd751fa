package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-platform/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newManager(t *testing.T, cfg config.AuthConfig) *Manager {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "secret"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newManager(t, config.AuthConfig{JWTIssuer: "crm", JWTAudience: "crm-api"})

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, Identity{UserID: "user-1", Role: "agent"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := claims.Identity(); got != (Identity{UserID: "user-1", Role: "agent"}) {
		t.Fatalf("unexpected identity: %+v", got)
	}

	if _, err := m.Verify(tok, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerify_ClockSkewWindow(t *testing.T) {
	m := newManager(t, config.AuthConfig{AccessTokenTTL: time.Minute})
	issued := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(issued, Identity{UserID: "u", Role: "agent"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(tok, issued.Add(time.Minute+10*time.Second)); err != nil {
		t.Fatalf("expected token within skew to verify, got %v", err)
	}
	if _, err := m.Verify(tok, issued.Add(time.Minute+time.Minute)); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := m.Verify(tok, issued.Add(-time.Minute)); !errors.Is(err, jwt.ErrTokenUsedBeforeIssued) {
		t.Fatalf("expected ErrTokenUsedBeforeIssued, got %v", err)
	}
}

func TestVerify_RejectsForeignIssuerAndAudience(t *testing.T) {
	now := time.Now()
	other := newManager(t, config.AuthConfig{JWTIssuer: "someone-else", JWTAudience: "crm-api"})
	tok, err := other.Issue(now, Identity{UserID: "u", Role: "agent"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m := newManager(t, config.AuthConfig{JWTIssuer: "crm", JWTAudience: "crm-api"})
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestVerify_RejectsNonAccessToken(t *testing.T) {
	m := newManager(t, config.AuthConfig{})
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Role:      "agent",
		TokenType: "refresh",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok, now); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestIssue_RequiresSubjectAndRole(t *testing.T) {
	m := newManager(t, config.AuthConfig{})
	if _, err := m.Issue(time.Now(), Identity{Role: "agent"}); !errors.Is(err, ErrNoSubject) {
		t.Fatalf("expected ErrNoSubject, got %v", err)
	}
	if _, err := m.Issue(time.Now(), Identity{UserID: "u"}); !errors.Is(err, ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t, config.AuthConfig{})
	tok, err := m.Issue(time.Now(), Identity{UserID: "u-7", Role: "auditor"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		id, _ := FromContext(c.Request.Context())
		c.String(http.StatusOK, id.UserID+":"+id.Role)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "u-7:auditor" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}

	for _, header := range []string{"", "Bearer", "Basic " + tok, "Bearer not-a-jwt"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}
