package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/agentplane/internal/authz"
	"github.com/edvin/agentplane/internal/core"
)

func serveWithRoles(t *testing.T, mode authz.Mode, roles []string, obj, act string) *httptest.ResponseRecorder {
	t.Helper()
	a, err := authz.New(mode)
	require.NoError(t, err)

	handler := RequirePermission(a, obj, act)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/versions/x/promote", nil)
	req = req.WithContext(WithPrincipal(req.Context(), core.Principal{TenantID: testTenant, Roles: roles}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequirePermission_Enforce(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		obj   string
		act   string
		want  int
	}{
		{"viewer reads", []string{"viewer"}, authz.ObjTemplates, authz.ActRead, http.StatusNoContent},
		{"viewer cannot write", []string{"viewer"}, authz.ObjTemplates, authz.ActWrite, http.StatusForbidden},
		{"operator promotes", []string{"operator"}, authz.ObjVersions, authz.ActPromote, http.StatusNoContent},
		{"evaluator cannot promote", []string{"evaluator"}, authz.ObjVersions, authz.ActPromote, http.StatusForbidden},
		{"any role suffices", []string{"viewer", "admin"}, authz.ObjPolicies, authz.ActWrite, http.StatusNoContent},
		{"no roles", nil, authz.ObjTemplates, authz.ActRead, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithRoles(t, authz.ModeEnforce, tt.roles, tt.obj, tt.act)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "forbidden", decodeError(t, rec)["code"])
			}
		})
	}
}

func TestRequirePermission_ShadowAllows(t *testing.T) {
	rec := serveWithRoles(t, authz.ModeShadow, []string{"viewer"}, authz.ObjVersions, authz.ActPromote)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequirePermission_DisabledAllows(t *testing.T) {
	rec := serveWithRoles(t, authz.ModeDisabled, nil, authz.ObjVersions, authz.ActPromote)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequirePermission_NoPrincipal(t *testing.T) {
	a, err := authz.New(authz.ModeEnforce)
	require.NoError(t, err)

	handler := RequirePermission(a, authz.ObjTemplates, authz.ActRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
