// Package middleware содержит HTTP middleware для сервиса витрины.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmeshcher/storefront-system/internal/auth"
)

type contextKey string

const callerKey contextKey = "caller"

const bearerPrefix = "Bearer "

// Auth проверяет bearer-токен запроса и добавляет вызывающую сторону в контекст.
type Auth struct {
	tokens *auth.TokenService
}

// NewAuth создаёт новый экземпляр Auth с указанным сервисом токенов.
func NewAuth(tokens *auth.TokenService) *Auth {
	return &Auth{tokens: tokens}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(header, bearerPrefix)
}

// Require отклоняет запросы без валидного токена доступа.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		identity, err := a.tokens.Parse(token)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, auth.Authenticated(identity))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional пропускает запрос в любом случае: отсутствующий или невалидный
// токен понижается до анонимного вызова вместо отказа.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := auth.Anonymous()
		if token := bearerToken(r); token != "" {
			if identity, err := a.tokens.Parse(token); err == nil {
				caller = auth.Authenticated(identity)
			}
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFromContext извлекает вызывающую сторону из контекста запроса.
func CallerFromContext(ctx context.Context) (auth.Caller, bool) {
	c, ok := ctx.Value(callerKey).(auth.Caller)
	return c, ok
}
