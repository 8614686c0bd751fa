package auth

import (
	"errors"
	"fmt"
	"time"

	"crm-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const clockSkew = 30 * time.Second

var (
	ErrWrongTokenType = errors.New("auth: not an access token")
	ErrNoSubject      = errors.New("auth: token has no subject")
	ErrNoRole         = errors.New("auth: token has no role")
)

// Manager signs and verifies HS256 operator tokens.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be > 0, got %s", cfg.AccessTokenTTL)
	}
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      cfg.AccessTokenTTL,
	}, nil
}

// Issue signs an access token for id, valid from now for the configured TTL.
func (m *Manager) Issue(now time.Time, id Identity) (string, error) {
	if id.UserID == "" {
		return "", ErrNoSubject
	}
	if id.Role == "" {
		return "", ErrNoRole
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role:      id.Role,
		TokenType: TokenTypeAccess,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, time claims against now, issuer and audience.
func (m *Manager) Verify(raw string, now time.Time) (Claims, error) {
	var claims Claims

	// exp/iat are validated below against now rather than the wall clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, err
	}

	if err := jwt.NewValidator(m.validatorOptions(now)...).Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	switch {
	case claims.TokenType != TokenTypeAccess:
		return Claims{}, ErrWrongTokenType
	case claims.Subject == "":
		return Claims{}, ErrNoSubject
	case claims.Role == "":
		return Claims{}, ErrNoRole
	}
	return claims, nil
}

func (m *Manager) validatorOptions(now time.Time) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	return opts
}
