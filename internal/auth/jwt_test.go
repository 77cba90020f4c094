package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cirocosta/todorest/internal/identity"
)

var (
	secret = []byte("s3cr3t")
	alice  = identity.Identity{ID: 7, Username: "alice"}
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestIssueAndAuthenticate(t *testing.T) {
	t.Parallel()

	a := NewJWTAuthenticator(secret, "todorest")

	token, err := a.Issue(alice, time.Hour)
	require.NoError(t, err)

	got, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

func TestIssueRejectsZeroIdentity(t *testing.T) {
	t.Parallel()

	_, err := NewJWTAuthenticator(secret, "").Issue(identity.Identity{}, time.Hour)
	assert.Error(t, err)
}

func TestAuthenticateRejects(t *testing.T) {
	t.Parallel()

	now := time.Now()
	valid := func(mod func(c *Claims)) Claims {
		c := Claims{
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "7",
				Issuer:    "todorest",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		if mod != nil {
			mod(&c)
		}
		return c
	}

	for name, tc := range map[string]struct {
		token func(t *testing.T) string
	}{
		"empty": {
			token: func(t *testing.T) string { return "" },
		},
		"garbage": {
			token: func(t *testing.T) string { return "not-a-token" },
		},
		"wrong secret": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte("other"), valid(nil))
			},
		},
		"wrong algorithm": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, secret, valid(nil))
			},
		},
		"unsigned": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(nil))
			},
		},
		"expired": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, valid(func(c *Claims) {
					c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				}))
			},
		},
		"no expiry": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, valid(func(c *Claims) {
					c.ExpiresAt = nil
				}))
			},
		},
		"wrong issuer": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, valid(func(c *Claims) {
					c.Issuer = "someone-else"
				}))
			},
		},
		"non numeric subject": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, valid(func(c *Claims) {
					c.Subject = "alice"
				}))
			},
		},
		"zero subject": {
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, secret, valid(func(c *Claims) {
					c.Subject = "0"
				}))
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a := NewJWTAuthenticator(secret, "todorest")

			_, err := a.Authenticate(context.Background(), tc.token(t))
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestAuthenticateWithoutIssuer(t *testing.T) {
	t.Parallel()

	token, err := NewJWTAuthenticator(secret, "elsewhere").Issue(alice, time.Hour)
	require.NoError(t, err)

	got, err := NewJWTAuthenticator(secret, "").Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

func TestFromHeader(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		value string
		want  string
	}{
		"missing":      {value: "", want: ""},
		"bearer":       {value: "Bearer abc.def", want: "abc.def"},
		"lower case":   {value: "bearer abc.def", want: "abc.def"},
		"extra spaces": {value: "  Bearer   abc.def  ", want: "abc.def"},
		"basic":        {value: "Basic dXNlcjpwYXNz", want: ""},
		"prefix only":  {value: "Bearer", want: ""},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			if tc.value != "" {
				h.Set("Authorization", tc.value)
			}
			assert.Equal(t, tc.want, FromHeader(h))
		})
	}
}
