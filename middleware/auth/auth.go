// Package auth guarda o usuário autenticado (principal) no contexto do request.
//
// A emissão e verificação de sessão pertencem ao serviço de autenticação; aqui fica
// apenas o contrato que o rate limit e o realtime consomem, mais um verificador de
// token JWT (cookie "token" ou Authorization: Bearer) para montar o principal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taqui-realtime/middleware/apierror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Principal é o usuário autenticado do request.
type Principal struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

var ErrInvalidToken = errors.New("invalid token")

const CookieName = "token"

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier valida tokens HS256 emitidos pelo serviço de autenticação.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Issue emite um token para o principal. Usado em testes e ferramentas de dev.
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) Verify(token string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: bad subject: %v", ErrInvalidToken, err)
	}
	return Principal{ID: id, Username: claims.Username}, nil
}

func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return ""
}

// Middleware exige um token válido e coloca o Principal no contexto.
func Middleware(v *Verifier, logger *zap.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := tokenFrom(r)
			if tok == "" {
				apierror.Write(w, http.StatusUnauthorized, apierror.ErrInvalidToken)
				return
			}
			p, err := v.Verify(tok)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err), zap.String("path", r.URL.Path))
				apierror.Write(w, http.StatusUnauthorized, apierror.ErrInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
