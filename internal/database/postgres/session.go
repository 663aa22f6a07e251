package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/pgkksql/internal/config"
	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/logger"
)

const (
	defaultFetchSize = 500
	closeTimeout     = 5 * time.Second
	applicationName  = "pgkksql"
)

// querier is satisfied by both *pgx.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session implements database.Session over a single pgx connection.
// A transaction is opened lazily by the first statement after a commit or
// rollback and stays open until one of those is called.
type Session struct {
	conn      *pgx.Conn
	tx        pgx.Tx
	profile   config.Profile
	rowLimit  int
	fetchSize int
}

var _ database.Session = (*Session)(nil)

// New creates a disconnected session. rowLimit <= 0 disables the implicit
// SELECT limit.
func New(rowLimit int) *Session {
	return &Session{
		rowLimit:  rowLimit,
		fetchSize: defaultFetchSize,
	}
}

// Connect closes any open connection and dials the profile.
func (s *Session) Connect(ctx context.Context, profile config.Profile) error {
	s.Disconnect()

	cfg, err := pgx.ParseConfig(profile.DSN())
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	cfg.RuntimeParams["application_name"] = applicationName

	logger.Debug("Connecting",
		"profile", profile.Name,
		"host", profile.Host,
		"port", profile.Port,
		"database", profile.Database,
		"user", profile.User,
	)

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("ping: %w", err)
	}

	s.conn = conn
	s.profile = profile
	logger.Info("Connected", "profile", profile.Name, "database", profile.Database)
	return nil
}

// Disconnect closes the connection. Close errors are ignored.
func (s *Session) Disconnect() {
	if s.conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if s.tx != nil {
		_ = s.tx.Rollback(ctx)
	}
	if err := s.conn.Close(ctx); err != nil {
		logger.Debug("Close failed", "error", err)
	}

	logger.Info("Disconnected", "profile", s.profile.Name)
	s.conn = nil
	s.tx = nil
	s.profile = config.Profile{}
}

// IsConnected reports whether a connection is open.
func (s *Session) IsConnected() bool {
	return s.conn != nil && !s.conn.IsClosed()
}

// Profile returns the active profile.
func (s *Session) Profile() (config.Profile, bool) {
	if !s.IsConnected() {
		return config.Profile{}, false
	}
	return s.profile, true
}

// Commit commits the open transaction, if any.
func (s *Session) Commit(ctx context.Context) error {
	if !s.IsConnected() || s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		logger.Error("Commit failed", "error", err)
		return fmt.Errorf("commit: %w", err)
	}
	logger.Info("Transaction committed")
	return nil
}

// Rollback rolls back the open transaction, if any.
func (s *Session) Rollback(ctx context.Context) error {
	if !s.IsConnected() || s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error("Rollback failed", "error", err)
		return fmt.Errorf("rollback: %w", err)
	}
	logger.Info("Transaction rolled back")
	return nil
}

func (s *Session) begin(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s.tx = tx
	return tx, nil
}

func (s *Session) rollbackQuietly(ctx context.Context) {
	if err := s.Rollback(ctx); err != nil {
		logger.Warn("Implicit rollback failed", "error", err)
	}
}

// inspect runs a metadata query. Inside an open transaction it uses a
// savepoint so a failing catalog query does not abort the user's work.
func (s *Session) inspect(ctx context.Context, fn func(q querier) error) error {
	if s.tx == nil {
		return fn(s.conn)
	}
	sp, err := s.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func (s *Session) listStrings(ctx context.Context, what, sql string, args ...any) ([]string, error) {
	if !s.IsConnected() {
		return []string{}, nil
	}

	var out []string
	err := s.inspect(ctx, func(q querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// ListDatabases returns non-template databases.
func (s *Session) ListDatabases(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx, "list databases", queryListDatabases)
}

// ListSchemas returns all user-created schemas.
func (s *Session) ListSchemas(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx, "list schemas", queryListSchemas)
}

// ListTables returns all table names in a schema.
func (s *Session) ListTables(ctx context.Context, schema string) ([]string, error) {
	return s.listStrings(ctx, "list tables", queryListTables, schema)
}

// ListAllColumns returns distinct column names across user schemas.
func (s *Session) ListAllColumns(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx, "list all columns", queryListAllColumns)
}

// ListPrimaryKeys returns primary key columns in key order.
func (s *Session) ListPrimaryKeys(ctx context.Context, schema, table string) ([]string, error) {
	return s.listStrings(ctx, "list primary keys", queryListPrimaryKeys, schema, table)
}

// ListAllTables returns (schema, table) pairs outside the system schemas.
func (s *Session) ListAllTables(ctx context.Context) ([]database.TableName, error) {
	if !s.IsConnected() {
		return []database.TableName{}, nil
	}

	var tables []database.TableName
	err := s.inspect(ctx, func(q querier) error {
		rows, err := q.Query(ctx, queryListAllTables)
		if err != nil {
			return err
		}
		tables, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (database.TableName, error) {
			var t database.TableName
			err := row.Scan(&t.Schema, &t.Name)
			return t, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list all tables: %w", err)
	}
	if tables == nil {
		tables = []database.TableName{}
	}
	return tables, nil
}

// ListColumns returns column metadata for a table.
func (s *Session) ListColumns(ctx context.Context, schema, table string) ([]database.Column, error) {
	if !s.IsConnected() {
		return []database.Column{}, nil
	}

	columns := []database.Column{}
	err := s.inspect(ctx, func(q querier) error {
		rows, err := q.Query(ctx, queryListColumns, schema, table)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var col database.Column
			var nullable string
			if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Default, &col.OrdinalPos, &col.IsPrimary); err != nil {
				return fmt.Errorf("scan column: %w", err)
			}
			col.IsNullable = nullable == "YES"
			columns = append(columns, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return columns, nil
}

// EstimateRowCount returns the approximate row count using pg_class statistics.
func (s *Session) EstimateRowCount(ctx context.Context, schema, table string) (int64, error) {
	if !s.IsConnected() {
		return 0, nil
	}

	var count int64
	err := s.inspect(ctx, func(q querier) error {
		err := q.QueryRow(ctx, queryTableRowCount, schema, table).Scan(&count)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("row count: %w", err)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// SwitchDatabase reconnects to name with the same server credentials. The
// open transaction is discarded.
func (s *Session) SwitchDatabase(ctx context.Context, name string) error {
	if !s.IsConnected() {
		return database.ErrNotConnected
	}
	return s.Connect(ctx, s.profile.WithDatabase(name))
}

// ExecuteQuery runs user SQL inside the session transaction. SELECTs are
// streamed through a server-side cursor; everything else reports the
// affected row count. Any error rolls the transaction back.
func (s *Session) ExecuteQuery(ctx context.Context, query string) *database.QueryResult {
	if !s.IsConnected() {
		return database.ErrorResult(database.ErrNotConnected)
	}

	stmt, isSelect := PrepareQuery(query, s.rowLimit)
	start := time.Now()
	log := logger.With("select", isSelect)
	log.Debug("Executing query", "sql", stmt)

	result, err := s.execute(ctx, stmt, isSelect)
	if err != nil {
		s.rollbackQuietly(ctx)
		log.Warn("Query failed", "error", err, "duration", time.Since(start))
		res := database.ErrorResult(err)
		res.Duration = time.Since(start)
		return res
	}

	result.Duration = time.Since(start)
	log.Info("Query finished", "rows", result.RowCount, "duration", result.Duration)
	return result
}

func (s *Session) execute(ctx context.Context, stmt string, isSelect bool) (*database.QueryResult, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	if !isSelect {
		tag, err := tx.Exec(ctx, stmt)
		if err != nil {
			return nil, err
		}
		return &database.QueryResult{RowCount: tag.RowsAffected()}, nil
	}

	return s.fetchCursor(ctx, tx, stmt)
}

// fetchCursor declares a cursor for stmt and drains it in batches.
func (s *Session) fetchCursor(ctx context.Context, tx pgx.Tx, stmt string) (*database.QueryResult, error) {
	cursor := pgx.Identifier{"pgkksql_" + strings.ReplaceAll(uuid.NewString(), "-", "")}.Sanitize()

	if _, err := tx.Exec(ctx, "DECLARE "+cursor+" NO SCROLL CURSOR FOR "+stmt); err != nil {
		return nil, err
	}

	result := &database.QueryResult{Rows: []database.Row{}}
	fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", s.fetchSize, cursor)

	for {
		n, err := s.fetchBatch(ctx, tx, fetch, result)
		if err != nil {
			return nil, err
		}
		if n < s.fetchSize {
			break
		}
	}

	if _, err := tx.Exec(ctx, "CLOSE "+cursor); err != nil {
		return nil, err
	}

	result.RowCount = int64(len(result.Rows))
	return result, nil
}

func (s *Session) fetchBatch(ctx context.Context, tx pgx.Tx, fetch string, result *database.QueryResult) (int, error) {
	rows, err := tx.Query(ctx, fetch)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if result.Columns == nil {
		result.Columns = make([]string, len(fields))
		result.ColumnTypes = make([]database.TypeCode, len(fields))
		for i, f := range fields {
			result.Columns[i] = f.Name
			result.ColumnTypes[i] = TypeCodeForOID(f.DataTypeOID)
		}
	}

	n := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return 0, fmt.Errorf("read row: %w", err)
		}
		row := make(database.Row, len(values))
		for i, f := range fields {
			row[f.Name] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
		n++
	}
	return n, rows.Err()
}

// ExecuteCellUpdate writes one cell. On failure the transaction is rolled
// back; on success it stays open for an explicit commit.
func (s *Session) ExecuteCellUpdate(ctx context.Context, u database.CellUpdate) error {
	if !s.IsConnected() {
		return database.ErrNotConnected
	}

	sql, args, err := BuildCellUpdate(u)
	if err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		s.rollbackQuietly(ctx)
		logger.Warn("Cell update failed",
			"table", u.Schema+"."+u.Table,
			"column", u.Column,
			"error", err,
		)
		return err
	}
	if tag.RowsAffected() == 0 {
		s.rollbackQuietly(ctx)
		logger.Warn("Cell update matched no row",
			"table", u.Schema+"."+u.Table,
			"column", u.Column,
		)
		return database.ErrNoRowUpdated
	}

	logger.Debug("Cell updated",
		"table", u.Schema+"."+u.Table,
		"column", u.Column,
		"rows", tag.RowsAffected(),
	)
	return nil
}
