// Package authz decides whether a caller's roles permit an action on an
// object, using a casbin RBAC model. The model and policy are embedded and
// may be replaced by files at startup.
package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

//go:embed model.conf
var defaultModel string

//go:embed policy.csv
var defaultPolicy string

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// Objects and actions checked by the HTTP routes.
const (
	ObjTemplates   = "templates"
	ObjVersions    = "versions"
	ObjEvaluations = "evaluations"
	ObjInstances   = "instances"
	ObjPolicies    = "policies"
	ObjEvents      = "events"

	ActRead    = "read"
	ActWrite   = "write"
	ActPromote = "promote"
)

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// New builds an Authorizer from the embedded model and policy.
func New(mode Mode) (*Authorizer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("parse authz model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(defaultPolicy))
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	return newAuthorizer(enforcer, mode)
}

// NewFromFiles loads the model and policy from disk instead.
func NewFromFiles(modelPath, policyPath string, mode Mode) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath, fileadapter.NewAdapter(policyPath))
	if err != nil {
		return nil, fmt.Errorf("load authz model %s: %w", modelPath, err)
	}
	return newAuthorizer(enforcer, mode)
}

func newAuthorizer(enforcer *casbin.Enforcer, mode Mode) (*Authorizer, error) {
	switch mode {
	case ModeEnforce, ModeShadow, ModeDisabled:
	default:
		return nil, fmt.Errorf("authz: unknown mode %q", mode)
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

// SubjectFromRole maps a token role onto a casbin subject.
func SubjectFromRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

// Authorize reports whether any of roles may perform act on obj. enforced is
// false in shadow and disabled modes, where callers must let the request
// through regardless of allowed.
func (a *Authorizer) Authorize(roles []string, obj, act string) (allowed bool, enforced bool, err error) {
	if a.mode == ModeDisabled {
		return true, false, nil
	}

	var errs []error
	for _, role := range roles {
		ok, err := a.enforcer.Enforce(SubjectFromRole(role), obj, act)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			allowed = true
			break
		}
	}
	if !allowed && len(errs) > 0 {
		err = errors.Join(errs...)
	}
	return allowed, a.mode == ModeEnforce, err
}
