// package auth resolves bearer credentials into identities
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cirocosta/todorest/internal/identity"
)

// ErrUnauthenticated is returned when a credential is missing or can't be
// resolved to an identity
var ErrUnauthenticated = errors.New("authentication credentials were not provided or are invalid")

// Authenticator resolves an opaque credential into an identity
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (identity.Identity, error)
}

// Claims are the token claims understood by JWTAuthenticator. The subject
// carries the decimal account id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 signed tokens
type JWTAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTAuthenticator creates an authenticator for tokens signed with secret.
// When issuer is not empty tokens must carry it in their iss claim.
func NewJWTAuthenticator(secret []byte, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
}

// Authenticate parses and verifies credential
func (a *JWTAuthenticator) Authenticate(_ context.Context, credential string) (identity.Identity, error) {
	if credential == "" {
		return identity.Identity{}, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return identity.Identity{}, fmt.Errorf("%w: subject %q is not an account id", ErrUnauthenticated, claims.Subject)
	}

	return identity.Identity{ID: id, Username: claims.Username}, nil
}

// Issue mints a token for who that expires after ttl
func (a *JWTAuthenticator) Issue(who identity.Identity, ttl time.Duration) (string, error) {
	if who.IsZero() {
		return "", errors.New("issue token: identity has no id")
	}

	now := a.now()
	claims := Claims{
		Username: who.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(who.ID, 10),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// FromHeader extracts the bearer credential from the Authorization header.
// It returns an empty string when there is none.
func FromHeader(h http.Header) string {
	const prefix = "bearer "

	value := strings.TrimSpace(h.Get("Authorization"))
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(value[len(prefix):])
}
