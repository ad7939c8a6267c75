package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"meal-planner/internal/domain"
	"meal-planner/internal/infra/logging"
)

type ctxKey int

const ownerKey ctxKey = iota

// UserClaims are the claims of an end-user access token. The subject is the owner id.
type UserClaims struct {
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret     []byte
	cronSecret string
}

func NewAuthenticator(jwtSecret, cronSecret string) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), cronSecret: cronSecret}
}

func bearer(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return strings.TrimSpace(hdr[7:])
	}
	return ""
}

func (a *Authenticator) parse(tok string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// RequireUser authenticates the caller and puts the owner id in the request context.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := a.parse(bearer(r))
		if err != nil {
			writeError(w, domain.ErrAuth)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, owner)
		ctx = logging.WithUserID(ctx, owner)
		annotate(w, ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCron admits the external scheduler. An empty cron secret disables the route.
func (a *Authenticator) RequireCron(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		if a.cronSecret == "" || subtle.ConstantTimeCompare([]byte(tok), []byte(a.cronSecret)) != 1 {
			writeError(w, domain.ErrAuth)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ownerFrom(ctx context.Context) string {
	s, _ := ctx.Value(ownerKey).(string)
	return s
}
