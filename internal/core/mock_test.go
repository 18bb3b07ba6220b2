package core

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/model"
)

const (
	testTenant  = "6f1c2a8e-3b5d-4e7f-9a01-23456789abcd"
	otherTenant = "0d9e8f7a-6b5c-4d3e-8f21-0123456789ef"
	testVersion = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testPolicy  = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func testPrincipal() Principal {
	return Principal{TenantID: testTenant, Subject: "alice", Roles: []string{"operator"}}
}

// ---------- Mock DB ----------

// mockDB implements db.Querier for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// sqlLike matches a statement containing fragment.
func sqlLike(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

// ---------- Fake store ----------

// fakeStore runs every unit of work directly against db and records which
// tenant each was bound to.
type fakeStore struct {
	db *mockDB

	mu      sync.Mutex
	writes  []string
	reads   []string
	failure error
}

func newFakeStore() *fakeStore {
	return &fakeStore{db: &mockDB{}}
}

func (s *fakeStore) InTenant(_ context.Context, tenantID string, fn func(q db.Querier) error) error {
	s.mu.Lock()
	s.writes = append(s.writes, tenantID)
	s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	return fn(s.db)
}

func (s *fakeStore) ReadInTenant(_ context.Context, tenantID string, fn func(q db.Querier) error) error {
	s.mu.Lock()
	s.reads = append(s.reads, tenantID)
	s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	return fn(s.db)
}

// capturePublisher records published events.
type capturePublisher struct {
	events []model.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, events ...model.Event) error {
	p.events = append(p.events, events...)
	return p.err
}

func (p *capturePublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

func newTestEvents(store Store, pub EventPublisher) *EventService {
	return NewEventService(store, pub, func() time.Time { return testNow })
}

// expectEventInsert expects one successful INSERT INTO events.
func expectEventInsert(d *mockDB) {
	d.On("Exec", mock.Anything, sqlLike("INSERT INTO events"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
}

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

// fill assigns vals to the scan destinations in order. A nil value leaves
// the destination zeroed.
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

func existsRow(exists bool) *mockRow {
	return valuesRow(exists)
}

func versionValues(v model.AgentVersion) []any {
	return []any{v.ID, v.TemplateID, v.TenantID, v.VersionLabel, v.ArtifactHash,
		v.ModelBundle, v.PromptBundle, v.ToolManifest, v.DataScopesDeclared, v.BuildProvenance,
		v.ReleaseStatus, v.CreatedAt}
}

func instanceValues(i model.AgentInstance) []any {
	return []any{i.ID, i.VersionID, i.TenantID, i.Environment, i.RuntimeTarget,
		i.PolicyEnvelopeID, i.Status, i.CreatedAt, i.UpdatedAt}
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows for testing.
// It iterates through a list of scan functions, one per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

// newEmptyMockRows returns a mockRows that yields zero rows.
func newEmptyMockRows() *mockRows {
	return &mockRows{}
}

func rowOf(vals ...any) func(dest ...any) error {
	return func(dest ...any) error {
		fill(dest, vals...)
		return nil
	}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func pgconnTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}
