package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/agentplane/internal/authz"
	"github.com/edvin/agentplane/internal/config"
	"github.com/edvin/agentplane/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		ServiceName: "control-plane-api",
		// Nothing listens on port 1; reaching the database step would fail differently.
		DatabaseURL:    "postgres://agentplane@127.0.0.1:1/agentplane?connect_timeout=1",
		HTTPListenAddr: "127.0.0.1:0",
		AuthMode:       config.AuthModeHS256,
		JWTSecret:      testSecret,
		AuthzMode:      string(authz.ModeEnforce),
		RedisAddr:      "127.0.0.1:1",
		RedisChannel:   "agentplane.events",
	}
}

func TestRun_AuthzFailureStopsBeforeConnecting(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	cfg.AuthzModelPath = filepath.Join(dir, "missing.conf")
	cfg.AuthzPolicyPath = filepath.Join(dir, "missing.csv")

	err := run(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load authz model")
	assert.NotContains(t, err.Error(), "connect to database")
}

func TestNewAuthorizer_Embedded(t *testing.T) {
	a, err := newAuthorizer(testConfig())
	require.NoError(t, err)
	assert.Equal(t, authz.ModeEnforce, a.Mode())
}

func TestNewVerifier_HS256(t *testing.T) {
	cfg := testConfig()
	cfg.JWTIssuer = "agentplane-dev"
	v, err := newVerifier(context.Background(), cfg)
	require.NoError(t, err)
	hmac, ok := v.(*core.HMACVerifier)
	require.True(t, ok)

	tenant := "6f1c2a8e-3b5d-4e7f-9a01-23456789abcd"
	token, err := hmac.Issue(core.Principal{TenantID: tenant, Roles: []string{"viewer"}}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, tenant, p.TenantID)
	assert.Equal(t, []string{"viewer"}, p.Roles)
}
