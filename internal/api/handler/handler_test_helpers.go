package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/agentplane/internal/api/middleware"
	"github.com/edvin/agentplane/internal/core"
)

const (
	testTenant   = "6f1c2a8e-3b5d-4e7f-9a01-23456789abcd"
	testTemplate = "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"
	testVersion  = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testPolicy   = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
	testInstance = "d4e5f6a7-b8c9-4d0e-9f1a-2b3c4d5e6f70"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withTenant injects an operator principal for testTenant.
func withTenant(r *http.Request) *http.Request {
	p := core.Principal{TenantID: testTenant, Subject: "alice", Roles: []string{"operator"}}
	return r.WithContext(mw.WithPrincipal(r.Context(), p))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}
