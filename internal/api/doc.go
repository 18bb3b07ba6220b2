// Package api serves the control-plane REST API: agent templates, versions
// and their release lifecycle, evaluation runs, policy envelopes, instances
// and the audit event trail. Every /v1 route requires a bearer token.
package api
