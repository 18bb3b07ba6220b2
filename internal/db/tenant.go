package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/platform"
)

// Querier is the statement surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

const bindTenantSQL = `SELECT set_config('app.current_tenant', $1, true)`

// TenantStore runs units of work inside a transaction bound to one tenant.
// Row-level security on every table reads the binding; it is transaction
// local, so a pooled connection never carries it into another request.
type TenantStore struct {
	pool   Beginner
	tracer trace.Tracer
}

func NewTenantStore(pool Beginner) *TenantStore {
	return &TenantStore{
		pool:   pool,
		tracer: otel.Tracer("github.com/edvin/agentplane/internal/db"),
	}
}

// InTenant runs fn in a read-committed transaction bound to tenantID. The
// transaction commits only if fn returns nil; any error, panic or context
// cancellation rolls it back.
func (s *TenantStore) InTenant(ctx context.Context, tenantID string, fn func(q Querier) error) error {
	return s.run(ctx, "store.InTenant", tenantID, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// ReadInTenant is InTenant with a read-only transaction.
func (s *TenantStore) ReadInTenant(ctx context.Context, tenantID string, fn func(q Querier) error) error {
	return s.run(ctx, "store.ReadInTenant", tenantID, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

func (s *TenantStore) run(ctx context.Context, op, tenantID string, opts pgx.TxOptions, fn func(q Querier) error) (err error) {
	tenant, ok := platform.ParseID(tenantID)
	if !ok {
		return apperr.Unauthenticated("invalid tenant identifier")
	}

	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("tenant.id", tenant)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		}
		span.End()
	}()

	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return classify(ctx, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, bindTenantSQL, tenant); err != nil {
		return classify(ctx, "bind tenant", err)
	}
	if err := fn(tx); err != nil {
		return classify(ctx, "unit of work", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(ctx, "commit", err)
	}
	return nil
}

// classify maps a driver error to an apperr kind. Domain errors pass through
// unchanged. The raw cause is logged and kept as the wrapped error, but never
// reaches the caller-facing message.
func classify(ctx context.Context, op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("resource")
	}
	logger := zerolog.Ctx(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().Err(err).Str("op", op).Msg("store operation cancelled")
		return apperr.StoreUnavailable(err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		logger.Error().Err(err).Str("op", op).Msg("store error")
		return apperr.StoreUnavailable(err)
	}

	switch pgErr.Code {
	case "40001", "40P01":
		logger.Warn().Err(err).Str("op", op).Str("code", pgErr.Code).Msg("transaction conflict")
		return apperr.Wrap(apperr.KindConflict, "concurrent modification, retry the request", err)
	case "23505":
		logger.Warn().Err(err).Str("op", op).Str("code", pgErr.Code).Msg("unique violation")
		return apperr.Wrap(apperr.KindConflict, "resource already exists", err)
	case "23503", "22P02":
		logger.Warn().Err(err).Str("op", op).Str("code", pgErr.Code).Msg("reference violation")
		return apperr.Wrap(apperr.KindNotFound, "referenced resource not found", err)
	case "42501":
		logger.Error().Err(err).Str("op", op).Str("code", pgErr.Code).Msg("tenant policy violation")
		return apperr.Wrap(apperr.KindForbidden, "access denied", err)
	default:
		logger.Error().Err(err).Str("op", op).Str("code", pgErr.Code).Msg("store error")
		return apperr.StoreUnavailable(err)
	}
}
