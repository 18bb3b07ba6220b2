package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/core"
)

type contextKey string

const principalKey contextKey = "principal"

// Auth verifies the bearer token and stores the resulting principal in the
// request context. The request-scoped logger gains the tenant id.
func Auth(verifier core.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			token := extractBearer(header)
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			p, err := verifier.Verify(r.Context(), token)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
				response.WriteServiceError(w, r, err)
				return
			}

			logger := zerolog.Ctx(r.Context()).With().Str("tenant_id", p.TenantID).Logger()
			ctx := logger.WithContext(WithPrincipal(r.Context(), p))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithPrincipal(ctx context.Context, p core.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the verified caller. ok is false outside Auth.
func GetPrincipal(ctx context.Context) (core.Principal, bool) {
	p, ok := ctx.Value(principalKey).(core.Principal)
	return p, ok
}
