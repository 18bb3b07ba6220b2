package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/platform"
)

// rowScanner is the Scan half of pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// normalizeSet trims, deduplicates and sorts a set for storage. The result
// is never nil, so it is written as an empty array rather than NULL.
func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// parseEntityID maps a malformed id onto the same NotFound a missing row gets.
func parseEntityID(entity, id string) (string, error) {
	canonical, ok := platform.ParseID(id)
	if !ok {
		return "", apperr.NotFound(entity)
	}
	return canonical, nil
}

// existsInTenant checks that a row with id exists in table for the tenant.
// table and column are compile-time constants, never caller input.
func existsInTenant(ctx context.Context, q db.Querier, table, column, id, tenantID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND tenant_id = $2)`, table, column),
		id, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", table, id, err)
	}
	return exists, nil
}
