// Package token issues and verifies the signed session tokens handed out at
// login. Tokens are stateless: nothing is stored server side, so the roles a
// token carries are the ones the user held when it was issued.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/customersms/customer-service/internal/core/domain"
)

// DefaultTTL bounds how long a revoked role stays usable through an
// already-issued token.
const DefaultTTL = 15 * time.Minute

// Claims is the JWT payload. The subject is the username.
type Claims struct {
	UserID   string   `json:"uid"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 session tokens with a process-wide secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, issuer string) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// TTL is the lifetime of newly issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a token for p and returns it with its expiry.
func (m *Manager) Issue(p *domain.Principal) (string, time.Time, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)

	roles := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, string(r))
	}

	claims := Claims{
		UserID:   p.UserID,
		Email:    p.Email,
		FullName: p.FullName,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Username,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry and decodes the principal.
// Every failure matches domain.ErrUnauthenticated.
func (m *Manager) Verify(raw string) (*domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if !tkn.Valid {
		return nil, domain.ErrUnauthenticated
	}
	if claims.Subject == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, errors.New("token missing identity"))
	}

	roles := make([]domain.RoleName, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		name, err := domain.ParseRoleName(r)
		if err != nil {
			continue
		}
		roles = append(roles, name)
	}

	return &domain.Principal{
		UserID:   claims.UserID,
		Username: claims.Subject,
		Email:    claims.Email,
		FullName: claims.FullName,
		Roles:    roles,
	}, nil
}
