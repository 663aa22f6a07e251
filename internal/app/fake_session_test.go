package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/joacominatel/pgkksql/internal/config"
	"github.com/joacominatel/pgkksql/internal/database"
)

// fakeSession is an in-memory database.Session. Queries are answered from
// the results map keyed by the exact statement text.
type fakeSession struct {
	mu sync.Mutex

	connected  bool
	stateReads int // IsConnected calls
	profile    config.Profile
	connects   []string // database names in connect order
	connectErr error
	switchErr  map[string]error // per target database

	results map[string]*database.QueryResult
	queries []string
	gate    chan struct{} // when set, ExecuteQuery blocks until it is closed

	pks       map[string][]string
	schemas   map[string][]string // per database
	tables    []database.TableName
	columns   []string
	updates   []database.CellUpdate
	updateErr error
	commits   int
	rollbacks int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		results:   map[string]*database.QueryResult{},
		pks:       map[string][]string{},
		schemas:   map[string][]string{},
		switchErr: map[string]error{},
	}
}

var _ database.Session = (*fakeSession)(nil)

func (f *fakeSession) Connect(_ context.Context, p config.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		f.connected = false
		return f.connectErr
	}
	f.connected = true
	f.profile = p
	f.connects = append(f.connects, p.Database)
	return nil
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeSession) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateReads++
	return f.connected
}

func (f *fakeSession) Profile() (config.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.connected
}

func (f *fakeSession) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeSession) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return nil
}

func (f *fakeSession) ListDatabases(context.Context) ([]string, error) {
	return []string{"app", "analytics"}, nil
}

func (f *fakeSession) ListSchemas(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schemas[f.profile.Database], nil
}

func (f *fakeSession) ListTables(_ context.Context, schema string) ([]string, error) {
	var out []string
	for _, t := range f.tables {
		if t.Schema == schema {
			out = append(out, t.Name)
		}
	}
	return out, nil
}

func (f *fakeSession) ListAllTables(context.Context) ([]database.TableName, error) {
	return f.tables, nil
}

func (f *fakeSession) ListColumns(context.Context, string, string) ([]database.Column, error) {
	return []database.Column{{Name: "id", DataType: "integer", IsPrimary: true, OrdinalPos: 1}}, nil
}

func (f *fakeSession) ListAllColumns(context.Context) ([]string, error) {
	return f.columns, nil
}

func (f *fakeSession) ListPrimaryKeys(_ context.Context, schema, table string) ([]string, error) {
	return f.pks[schema+"."+table], nil
}

func (f *fakeSession) EstimateRowCount(context.Context, string, string) (int64, error) {
	return 42, nil
}

func (f *fakeSession) SwitchDatabase(ctx context.Context, name string) error {
	if !f.IsConnected() {
		return database.ErrNotConnected
	}
	p, _ := f.Profile()
	f.mu.Lock()
	err := f.switchErr[name]
	f.mu.Unlock()
	if err != nil {
		// a real switch drops the old connection before dialing the new one
		f.Disconnect()
		return err
	}
	return f.Connect(ctx, p.WithDatabase(name))
}

func (f *fakeSession) ExecuteQuery(_ context.Context, query string) *database.QueryResult {
	f.mu.Lock()
	gate := f.gate
	f.queries = append(f.queries, query)
	res, ok := f.results[query]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return &database.QueryResult{Err: "unexpected query: " + query}
	}
	return res
}

func (f *fakeSession) ExecuteCellUpdate(_ context.Context, u database.CellUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	if f.updateErr != nil && strings.HasPrefix(u.Column, "bad") {
		return f.updateErr
	}
	return nil
}

func (f *fakeSession) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

var errBoom = errors.New("boom")

type fakeToucher struct{ touched []string }

func (t *fakeToucher) Touch(name string) error {
	t.touched = append(t.touched, name)
	return nil
}
