package core

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/model"
	"github.com/edvin/agentplane/internal/platform"
)

// Principal is the verified caller. TenantID is always a canonical UUID.
type Principal struct {
	TenantID string
	Subject  string
	Roles    []string
}

// Actor returns the audit actor: the token subject when present, otherwise
// the tenant itself acting as the system.
func (p Principal) Actor() (actorType, actorID string) {
	if p.Subject != "" {
		return model.ActorUser, p.Subject
	}
	return model.ActorSystem, p.TenantID
}

// TokenVerifier turns a raw bearer token into a Principal. Every failure is
// an Unauthenticated error.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (Principal, error)
}

// ClaimOptions controls how verified claims map onto a Principal.
type ClaimOptions struct {
	Issuer      string
	Audience    string
	TenantClaim string
	DefaultRole string
}

func (o ClaimOptions) tenantClaim() string {
	if o.TenantClaim == "" {
		return "tenant_id"
	}
	return o.TenantClaim
}

var errMissingToken = apperr.Unauthenticated("missing bearer token")

// HMACVerifier verifies HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	opts   ClaimOptions
}

func NewHMACVerifier(secret string, opts ClaimOptions) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), opts: opts}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (Principal, error) {
	if rawToken == "" {
		return Principal{}, errMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.Issuer))
	}
	if v.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.opts.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return Principal{}, apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}
	return principalFromClaims(claims, v.opts)
}

// Issue mints a token for p. It backs the issue-token command and tests;
// production tokens come from the identity provider.
func (v *HMACVerifier) Issue(p Principal, ttl time.Duration) (string, error) {
	if _, ok := platform.ParseID(p.TenantID); !ok {
		return "", fmt.Errorf("tenant %q is not a UUID", p.TenantID)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		v.opts.tenantClaim(): p.TenantID,
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
	}
	if p.Subject != "" {
		claims["sub"] = p.Subject
	}
	if len(p.Roles) > 0 {
		claims["roles"] = p.Roles
	}
	if v.opts.Issuer != "" {
		claims["iss"] = v.opts.Issuer
	}
	if v.opts.Audience != "" {
		claims["aud"] = v.opts.Audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// OIDCVerifier verifies tokens issued by an OpenID Connect provider against
// the provider's published signing keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	opts     ClaimOptions
}

// NewOIDCVerifier discovers the provider configuration at issuerURL.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string, opts ClaimOptions) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuerURL, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		opts:     opts,
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Principal, error) {
	if rawToken == "" {
		return Principal{}, errMissingToken
	}
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Principal{}, apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}
	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return Principal{}, apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}
	return principalFromClaims(claims, v.opts)
}

func principalFromClaims(claims map[string]any, opts ClaimOptions) (Principal, error) {
	raw, _ := claims[opts.tenantClaim()].(string)
	if raw == "" {
		return Principal{}, apperr.Unauthenticated("token missing tenant claim")
	}
	tenantID, ok := platform.ParseID(raw)
	if !ok {
		return Principal{}, apperr.Unauthenticated("tenant claim is not a valid identifier")
	}

	sub, _ := claims["sub"].(string)
	roles := stringList(claims["roles"])
	if len(roles) == 0 && opts.DefaultRole != "" {
		roles = []string{opts.DefaultRole}
	}
	return Principal{TenantID: tenantID, Subject: sub, Roles: roles}, nil
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vals != "" {
			return []string{vals}
		}
	}
	return nil
}
