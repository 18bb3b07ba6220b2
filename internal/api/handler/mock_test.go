package handler

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/agentplane/internal/core"
	"github.com/edvin/agentplane/internal/db"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// handlerMockDB implements db.Querier for handler tests.
type handlerMockDB struct {
	mock.Mock
}

func (m *handlerMockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *handlerMockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *handlerMockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

func sqlLike(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

// handlerStore hands every unit of work straight to the mock.
type handlerStore struct {
	db      *handlerMockDB
	failure error
}

func (s *handlerStore) InTenant(_ context.Context, _ string, fn func(q db.Querier) error) error {
	if s.failure != nil {
		return s.failure
	}
	return fn(s.db)
}

func (s *handlerStore) ReadInTenant(ctx context.Context, tenantID string, fn func(q db.Querier) error) error {
	return s.InTenant(ctx, tenantID, fn)
}

// newTestServices wires real core services over a mocked database.
func newTestServices() (*core.Services, *handlerMockDB, *handlerStore) {
	d := &handlerMockDB{}
	store := &handlerStore{db: d}
	services := core.NewServices(store, core.Options{Now: func() time.Time { return testNow }})
	return services, d, store
}

func expectEventInsert(d *handlerMockDB) {
	d.On("Exec", mock.Anything, sqlLike("INSERT INTO events"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
}

// ---------- Mock Row ----------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

func fill(dest []any, vals ...any) {
	for i, v := range vals {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
}

func valuesRow(vals ...any) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		fill(dest, vals...)
		return nil
	}}
}

func errRow(err error) *mockRow {
	return &mockRow{scanFunc: func(...any) error { return err }}
}

// ---------- Mock Rows ----------

type mockRows struct {
	callIndex int
	rows      [][]any
}

func newMockRows(rows ...[]any) *mockRows {
	return &mockRows{rows: rows}
}

func (m *mockRows) Next() bool { return m.callIndex < len(m.rows) }

func (m *mockRows) Scan(dest ...any) error {
	fill(dest, m.rows[m.callIndex]...)
	m.callIndex++
	return nil
}

func (m *mockRows) Err() error                                   { return nil }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }
