package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/authz"
)

// RequirePermission checks the caller's roles against obj/act. In shadow
// mode a denial is logged and the request continues.
func RequirePermission(a *authz.Authorizer, obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				response.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			allowed, enforced, err := a.Authorize(p.Roles, obj, act)
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Str("obj", obj).Str("act", act).Msg("authorization check failed")
			}
			if !allowed {
				if enforced {
					response.WriteError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
				zerolog.Ctx(r.Context()).Warn().
					Strs("roles", p.Roles).
					Str("obj", obj).
					Str("act", act).
					Str("mode", string(a.Mode())).
					Msg("authorization denied (not enforced)")
			}
			next.ServeHTTP(w, r)
		})
	}
}
