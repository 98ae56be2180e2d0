// Package auth issues and verifies session tokens and carries the
// authenticated principal through request contexts.
package auth

import (
	"context"
	"errors"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	UserID domain.ID
	Email  string
	Role   string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// CanAccess reports whether the principal may read data owned by userID.
func (p Principal) CanAccess(userID domain.ID) bool {
	return p.IsAdmin() || p.UserID == userID
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, maxAge time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// MaxAge is the lifetime of issued tokens.
func (i *Issuer) MaxAge() time.Duration {
	return i.maxAge
}

// Issue signs a token for user.
func (i *Issuer) Issue(user domain.User) (string, error) {
	now := i.now()
	c := claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.maxAge)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

// Verify parses a token and returns its principal.
func (i *Issuer) Verify(token string) (Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return Principal{}, domain.ErrUnauthenticated
	}
	id, err := domain.ParseID("sub", c.Subject)
	if err != nil {
		return Principal{}, domain.ErrUnauthenticated
	}
	return Principal{UserID: id, Email: c.Email, Role: c.Role}, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
