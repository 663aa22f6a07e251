package tui

import (
	"context"
	"errors"

	"github.com/joacominatel/pgkksql/internal/config"
	"github.com/joacominatel/pgkksql/internal/database"
)

// fakeSession answers queries from a map keyed by statement text. The TUI
// only touches it from the test goroutine and the await command, which
// never overlap in these tests.
type fakeSession struct {
	connected  bool
	profile    config.Profile
	connectErr error

	results   map[string]*database.QueryResult
	queries   []string
	schemas   []string
	tables    []string
	pks       map[string][]string
	updates   []database.CellUpdate
	commits   int
	rollbacks int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		results: map[string]*database.QueryResult{},
		pks:     map[string][]string{},
	}
}

var _ database.Session = (*fakeSession)(nil)

var errRefused = errors.New("connection refused")

func (f *fakeSession) Connect(_ context.Context, p config.Profile) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.profile = p
	return nil
}

func (f *fakeSession) Disconnect() { f.connected = false }
func (f *fakeSession) IsConnected() bool { return f.connected }
func (f *fakeSession) Profile() (config.Profile, bool) { return f.profile, f.connected }
func (f *fakeSession) Commit(context.Context) error { f.commits++; return nil }
func (f *fakeSession) Rollback(context.Context) error { f.rollbacks++; return nil }
func (f *fakeSession) ListSchemas(context.Context) ([]string, error) { return f.schemas, nil }

func (f *fakeSession) ListDatabases(context.Context) ([]string, error) {
	return []string{"app", "analytics"}, nil
}

func (f *fakeSession) ListTables(context.Context, string) ([]string, error) {
	return f.tables, nil
}

func (f *fakeSession) ListAllTables(context.Context) ([]database.TableName, error) {
	var out []database.TableName
	for _, t := range f.tables {
		out = append(out, database.TableName{Schema: "public", Name: t})
	}
	return out, nil
}

func (f *fakeSession) ListColumns(context.Context, string, string) ([]database.Column, error) {
	return []database.Column{
		{Name: "id", DataType: "integer", IsPrimary: true, OrdinalPos: 1},
		{Name: "name", DataType: "text", OrdinalPos: 2},
	}, nil
}

func (f *fakeSession) ListAllColumns(context.Context) ([]string, error) {
	return []string{"id", "name"}, nil
}

func (f *fakeSession) ListPrimaryKeys(_ context.Context, schema, table string) ([]string, error) {
	return f.pks[schema+"."+table], nil
}

func (f *fakeSession) EstimateRowCount(context.Context, string, string) (int64, error) {
	return 2, nil
}

func (f *fakeSession) SwitchDatabase(ctx context.Context, name string) error {
	return f.Connect(ctx, f.profile.WithDatabase(name))
}

func (f *fakeSession) ExecuteQuery(_ context.Context, query string) *database.QueryResult {
	f.queries = append(f.queries, query)
	if res, ok := f.results[query]; ok {
		return res
	}
	return &database.QueryResult{Err: "unexpected query: " + query}
}

func (f *fakeSession) ExecuteCellUpdate(_ context.Context, u database.CellUpdate) error {
	f.updates = append(f.updates, u)
	return nil
}

// memStore is an in-memory profile store.
type memStore struct {
	profiles []config.Profile
	touched  []string
}

func (s *memStore) Load() []config.Profile {
	return append([]config.Profile(nil), s.profiles...)
}

func (s *memStore) Upsert(p config.Profile) ([]config.Profile, error) {
	for i := range s.profiles {
		if s.profiles[i].Name == p.Name {
			s.profiles[i] = p
			return s.Load(), nil
		}
	}
	s.profiles = append(s.profiles, p)
	return s.Load(), nil
}

func (s *memStore) Delete(name string) ([]config.Profile, error) {
	var out []config.Profile
	for _, p := range s.profiles {
		if p.Name != name {
			out = append(out, p)
		}
	}
	s.profiles = out
	return s.Load(), nil
}

func (s *memStore) Touch(name string) error {
	s.touched = append(s.touched, name)
	return nil
}
