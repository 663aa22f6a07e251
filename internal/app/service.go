package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joacominatel/pgkksql/internal/config"
	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/database/postgres"
	"github.com/joacominatel/pgkksql/internal/grid"
	"github.com/joacominatel/pgkksql/internal/logger"
	"github.com/joacominatel/pgkksql/internal/resolver"
)

// ProfileToucher records that a profile was used.
type ProfileToucher interface {
	Touch(name string) error
}

// ConfirmFunc asks the user whether editCount pending edits may be
// discarded.
type ConfirmFunc func(editCount int) bool

// Request is one execution of user SQL. Ref is an explicit table binding;
// when zero, SELECTs are attributed by the resolver.
type Request struct {
	Query string
	Ref   database.TableRef
}

// Service coordinates application-level operations between the TUI and the
// database session. All methods except Future.Await run on the UI loop.
type Service struct {
	session   database.Session
	profiles  ProfileToucher
	pipeline  *Pipeline
	grid      *grid.Model
	completer *Completer
	rowLimit  int

	// working is the profile the session returns to after a scoped
	// database switch.
	working config.Profile
	// connected mirrors the session state as last changed from this loop.
	// The pipeline worker owns the connection while a query runs, so the UI
	// never asks the driver.
	connected bool
	lastQuery string
	lastRows  int64
	lastRef   database.TableRef
	status    string
}

// NewService creates a new application service. profiles may be nil.
func NewService(session database.Session, profiles ProfileToucher, rowLimit int) *Service {
	s := &Service{
		session:   session,
		profiles:  profiles,
		pipeline:  NewPipeline(session),
		grid:      grid.New(),
		completer: NewCompleter(),
		rowLimit:  rowLimit,
		status:    StatusNotConnected,
	}
	s.grid.OnEditsChanged(s.editsChanged)
	return s
}

// Grid returns the result model.
func (s *Service) Grid() *grid.Model { return s.grid }

// Completer returns the autocomplete source.
func (s *Service) Completer() *Completer { return s.completer }

// Status returns the current status line text.
func (s *Service) Status() string { return s.status }

// Busy reports whether a query is in flight.
func (s *Service) Busy() bool { return s.pipeline.Busy() }

// Connected reports whether the session is open.
func (s *Service) Connected() bool { return s.connected }

// Working returns the profile the explorer and editor act on.
func (s *Service) Working() (config.Profile, bool) {
	if !s.connected {
		return config.Profile{}, false
	}
	return s.working, true
}

// editsChanged only speaks for the table view; error and DML messages keep
// their own status while edits wait behind them.
func (s *Service) editsChanged(count int) {
	if s.grid.Kind() != grid.KindTable {
		return
	}
	if count > 0 {
		s.status = EditStatus(s.lastRows, count)
		return
	}
	s.status = s.tableStatus()
}

func (s *Service) tableStatus() string {
	if s.lastRef.Editable() && !s.grid.Editable() {
		return KeyMissingStatus(s.lastRows, s.lastRef)
	}
	return TableStatus(s.lastRows, s.rowLimit, s.lastRef, s.lastQuery)
}

// Connect opens the session for p, remembers it as the working profile and
// marks it as most recently used.
func (s *Service) Connect(ctx context.Context, p config.Profile) error {
	if s.pipeline.Busy() {
		return ErrQueryInFlight
	}
	if err := s.session.Connect(ctx, p); err != nil {
		s.connected = false
		s.status = "Connection failed: " + err.Error()
		return &ErrConnection{Profile: p.Name, Cause: err}
	}

	s.working = p
	s.connected = true
	s.grid.Clear()
	if s.profiles != nil {
		if err := s.profiles.Touch(p.Name); err != nil {
			logger.Warn("Could not record profile use", "profile", p.Name, "error", err)
		}
	}
	if err := s.RefreshCompletions(ctx); err != nil {
		logger.Warn("Could not load completions", "error", err)
	}

	s.status = fmt.Sprintf("Connected to %s (%s:%d)", p.Name, p.Host, p.Port)
	return nil
}

// Disconnect closes the session.
func (s *Service) Disconnect() {
	s.session.Disconnect()
	s.connected = false
	s.status = StatusNotConnected
}

// restore reconnects to the working profile after a database switch.
func (s *Service) restore(ctx context.Context) error {
	if err := s.session.Connect(ctx, s.working); err != nil {
		s.connected = false
		s.status = "Connection lost: " + err.Error()
		logger.Error("Could not restore working database", "database", s.working.Database, "error", err)
		return &ErrConnection{Profile: s.working.Name, Cause: err}
	}
	s.connected = true
	return nil
}

// RefreshCompletions reloads table and column names of the working database.
func (s *Service) RefreshCompletions(ctx context.Context) error {
	tables, err := s.session.ListAllTables(ctx)
	if err != nil {
		return err
	}
	columns, err := s.session.ListAllColumns(ctx)
	if err != nil {
		return err
	}
	s.completer.SetCatalog(tables, columns)
	return nil
}

// WithDatabase runs fn while the session is connected to name, then
// reconnects to the working profile on every exit path, including a failed
// switch. The open transaction does not survive the switch.
func (s *Service) WithDatabase(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	if s.pipeline.Busy() {
		return ErrQueryInFlight
	}
	if !s.connected {
		return database.ErrNotConnected
	}
	if name == "" || name == s.working.Database {
		return fn(ctx)
	}

	if s.grid.HasPendingChanges() {
		logger.Warn("Switching database discards the open transaction",
			"from", s.working.Database, "to", name)
	}

	defer func() {
		if rerr := s.restore(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	if err := s.session.SwitchDatabase(ctx, name); err != nil {
		return &ErrConnection{Profile: s.working.Name, Cause: err}
	}

	return fn(ctx)
}

// Databases lists the databases on the server.
func (s *Service) Databases(ctx context.Context) ([]string, error) {
	if s.pipeline.Busy() {
		return nil, ErrQueryInFlight
	}
	return s.session.ListDatabases(ctx)
}

// Schemas lists the schemas of dbName.
func (s *Service) Schemas(ctx context.Context, dbName string) ([]string, error) {
	var out []string
	err := s.WithDatabase(ctx, dbName, func(ctx context.Context) error {
		var err error
		out, err = s.session.ListSchemas(ctx)
		return err
	})
	return out, err
}

// Tables lists the tables of a schema in dbName.
func (s *Service) Tables(ctx context.Context, dbName, schema string) ([]string, error) {
	var out []string
	err := s.WithDatabase(ctx, dbName, func(ctx context.Context) error {
		var err error
		out, err = s.session.ListTables(ctx, schema)
		return err
	})
	return out, err
}

// TableDetail is what the explorer shows for an expanded table.
type TableDetail struct {
	Columns      []database.Column
	RowsEstimate int64
}

// Table loads columns and the row estimate of a table in dbName.
func (s *Service) Table(ctx context.Context, dbName, schema, table string) (*TableDetail, error) {
	detail := &TableDetail{}
	err := s.WithDatabase(ctx, dbName, func(ctx context.Context) error {
		var err error
		if detail.Columns, err = s.session.ListColumns(ctx, schema, table); err != nil {
			return err
		}
		detail.RowsEstimate, err = s.session.EstimateRowCount(ctx, schema, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// NeedsConfirm reports whether running query would discard pending edits.
func (s *Service) NeedsConfirm(query string) bool {
	return postgres.IsSelect(query) && s.grid.HasEdits()
}

// Execute dispatches req to the pipeline. A SELECT issued over pending edits
// asks confirm first; declining returns ErrDiscardDeclined and accepting
// rolls the edits back. The returned Future must be awaited and its outcome
// passed to Apply.
func (s *Service) Execute(ctx context.Context, req Request, confirm ConfirmFunc) (*Future, error) {
	if !s.connected {
		s.status = StatusNotConnected
		return nil, database.ErrNotConnected
	}
	if s.pipeline.Busy() {
		s.status = "Query already running..."
		return nil, ErrQueryInFlight
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.status = "No query to execute"
		return nil, ErrEmptyQuery
	}

	isSelect := postgres.IsSelect(query)
	if isSelect && s.grid.HasEdits() {
		if confirm == nil || !confirm(s.grid.EditCount()) {
			return nil, ErrDiscardDeclined
		}
		if err := s.grid.Rollback(ctx, s.session); err != nil {
			logger.Warn("Rollback before new query failed", "error", err)
		}
	}

	ref := req.Ref
	if !ref.Bound() && isSelect {
		ref.Schema, ref.Table = resolver.Resolve(query)
	}

	fut, err := s.pipeline.Start(ctx, query, ref)
	if err != nil {
		return nil, err
	}
	s.status = StatusExecuting
	return fut, nil
}

// Apply presents a finished outcome and releases the pipeline. For tabular
// results bound to a table it looks up the primary keys, so the returned
// outcome carries the final binding.
func (s *Service) Apply(ctx context.Context, out Outcome) Outcome {
	defer s.pipeline.Release()

	switch out.Kind {
	case OutcomeError:
		msg := ""
		if out.Result != nil {
			msg = out.Result.Err
		}
		if msg == "" && out.Err != nil {
			msg = out.Err.Error()
		}
		s.grid.SetError(msg)
		s.status = withStagedEdits(StatusQueryFailed, s.grid.EditCount())

	case OutcomeTable:
		r := out.Result
		if s.grid.HasEdits() {
			// Only a non-SELECT such as UPDATE ... RETURNING gets here with
			// edits staged. The edited table stays; the rows are reported
			// as a count.
			s.grid.SetDML(r.RowCount)
			s.status = withStagedEdits(DMLStatus(r.RowCount), s.grid.EditCount())
			break
		}
		ref := out.Ref
		if ref.Bound() {
			pks, err := s.session.ListPrimaryKeys(ctx, ref.Schema, ref.Table)
			if err != nil {
				logger.Warn("Primary key lookup failed", "table", ref.Schema+"."+ref.Table, "error", err)
			}
			ref.PrimaryKeys = pks
		}
		out.Ref = ref

		s.lastQuery = out.Query
		s.lastRows = r.RowCount
		s.lastRef = ref
		s.grid.SetRows(r.Rows, r.Columns, r.ColumnTypes)
		s.grid.Bind(ref)
		s.status = s.tableStatus()

	case OutcomeDML:
		s.grid.SetDML(out.Result.RowCount)
		s.status = withStagedEdits(DMLStatus(out.Result.RowCount), s.grid.EditCount())
	}

	logger.Info("Query applied", "kind", out.Kind.String(), "editable", s.grid.Editable())
	return out
}

// Run executes req and applies its outcome, blocking until done.
func (s *Service) Run(ctx context.Context, req Request, confirm ConfirmFunc) (Outcome, error) {
	fut, err := s.Execute(ctx, req, confirm)
	if err != nil {
		return Outcome{}, err
	}
	out, _ := fut.Await()
	return s.Apply(ctx, out), nil
}

// OpenTable makes dbName the working database and selects every row of
// schema.table with an explicit binding. It returns the generated query.
func (s *Service) OpenTable(ctx context.Context, dbName, schema, table string, confirm ConfirmFunc) (string, *Future, error) {
	if s.pipeline.Busy() {
		return "", nil, ErrQueryInFlight
	}
	if s.grid.HasEdits() {
		if confirm == nil || !confirm(s.grid.EditCount()) {
			return "", nil, ErrDiscardDeclined
		}
		if err := s.Rollback(ctx); err != nil {
			logger.Warn("Rollback before opening table failed", "error", err)
		}
	}

	if dbName != "" && dbName != s.working.Database {
		if err := s.session.SwitchDatabase(ctx, dbName); err != nil {
			cerr := error(&ErrConnection{Profile: s.working.Name, Cause: err})
			if rerr := s.restore(ctx); rerr != nil {
				cerr = errors.Join(cerr, rerr)
			}
			return "", nil, cerr
		}
		s.working = s.working.WithDatabase(dbName)
		s.grid.Clear()
		if err := s.RefreshCompletions(ctx); err != nil {
			logger.Warn("Could not load completions", "error", err)
		}
		logger.Info("Working database changed", "database", dbName)
	}

	pks, err := s.session.ListPrimaryKeys(ctx, schema, table)
	if err != nil {
		return "", nil, err
	}
	query := postgres.TableQuery(schema, table, pks)

	fut, err := s.Execute(ctx, Request{
		Query: query,
		Ref:   database.TableRef{Schema: schema, Table: table},
	}, nil)
	return query, fut, err
}

// ShowEditedTable returns from an error or DML message to the table whose
// edits are still staged.
func (s *Service) ShowEditedTable() bool {
	if !s.grid.ShowTable() {
		return false
	}
	if s.grid.HasEdits() {
		s.status = EditStatus(s.lastRows, s.grid.EditCount())
	} else {
		s.status = s.tableStatus()
	}
	return true
}

// Commit writes pending edits and commits the transaction.
func (s *Service) Commit(ctx context.Context) error {
	if s.pipeline.Busy() {
		return ErrQueryInFlight
	}
	if err := s.grid.Commit(ctx, s.session); err != nil {
		s.status = "Update failed: " + err.Error()
		return err
	}
	s.status = StatusCommitted
	return nil
}

// Rollback discards pending edits and uncommitted statements.
func (s *Service) Rollback(ctx context.Context) error {
	if s.pipeline.Busy() {
		return ErrQueryInFlight
	}
	err := s.grid.Rollback(ctx, s.session)
	s.status = StatusRolledBack
	return err
}

// CanQuit reports whether the app may exit without asking.
func (s *Service) CanQuit() bool {
	return !s.grid.HasEdits()
}
