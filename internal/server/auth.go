package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kuhandran/Content-Hub-sub001/internal/metrics"
)

var (
	errMissingAuth   = errors.New("missing authorization header")
	errInvalidScheme = errors.New("invalid authorization scheme")
	errInvalidToken  = errors.New("invalid token")
)

// Claims are the JWT claims accepted by the API. Admin is required for
// mutating requests.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the authenticated principal, if any. Requests
// authenticated with the static token carry admin claims with subject
// "token".
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// Authenticator checks bearer credentials: a static token, an HS256 JWT
// signed with secret, or either. With neither configured, auth is off.
type Authenticator struct {
	token  string
	secret []byte
}

func NewAuthenticator(token, jwtSecret string) *Authenticator {
	a := &Authenticator{token: token}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && (a.token != "" || len(a.secret) > 0)
}

// IssueToken signs a JWT for subject, valid for ttl.
func (a *Authenticator) IssueToken(subject string, admin bool, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("no JWT secret configured")
	}
	now := time.Now()
	claims := &Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "contenthub",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// authenticate validates an Authorization header value.
func (a *Authenticator) authenticate(header string) (*Claims, error) {
	if header == "" {
		return nil, errMissingAuth
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errInvalidScheme
	}
	provided := strings.TrimPrefix(header, "Bearer ")

	if a.token != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(a.token)) == 1 {
		return &Claims{Admin: true, RegisteredClaims: jwt.RegisteredClaims{Subject: "token"}}, nil
	}
	if len(a.secret) == 0 {
		return nil, errInvalidToken
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(provided, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	return claims, nil
}

// exempt lists unauthenticated routes.
func exempt(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return r.URL.Path == "/v1/health" || r.URL.Path == "/metrics"
}

// Middleware enforces auth on every route except health and metrics.
// Reads need any valid credential; writes need an admin one.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.authenticate(r.Header.Get("Authorization"))
		metrics.RecordAuthAttempt(err == nil)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead:
		default:
			if !claims.Admin {
				writeError(w, http.StatusForbidden, "admin privileges required")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}
