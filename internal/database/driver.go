package database

import (
	"context"

	"github.com/joacominatel/pgkksql/internal/config"
)

// Session owns one live connection and its open transaction.
//
// Metadata calls return empty results when disconnected. ExecuteQuery
// reports failures in QueryResult.Err and rolls the transaction back.
// ExecuteCellUpdate leaves a successful write uncommitted.
type Session interface {
	// Connect closes any existing connection and opens a new one with
	// manual transaction control.
	Connect(ctx context.Context, profile config.Profile) error

	// Disconnect closes the connection, ignoring close errors.
	Disconnect()

	// IsConnected reports whether a connection is open.
	IsConnected() bool

	// Profile returns the active profile, if connected.
	Profile() (config.Profile, bool)

	// Commit commits the open transaction. No-op when disconnected.
	Commit(ctx context.Context) error

	// Rollback rolls back the open transaction. No-op when disconnected.
	Rollback(ctx context.Context) error

	// ListDatabases returns non-template databases on the server.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListSchemas returns user schemas in the current database.
	ListSchemas(ctx context.Context) ([]string, error)

	// ListTables returns base table names in a schema.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// ListAllTables returns every user table in the current database.
	ListAllTables(ctx context.Context) ([]TableName, error)

	// ListColumns returns columns of a table in physical order.
	ListColumns(ctx context.Context, schema, table string) ([]Column, error)

	// ListAllColumns returns distinct column names across user schemas.
	ListAllColumns(ctx context.Context) ([]string, error)

	// ListPrimaryKeys returns primary key columns in key order.
	ListPrimaryKeys(ctx context.Context, schema, table string) ([]string, error)

	// EstimateRowCount returns the planner's row estimate for a table.
	EstimateRowCount(ctx context.Context, schema, table string) (int64, error)

	// SwitchDatabase reconnects to another database on the same server.
	SwitchDatabase(ctx context.Context, name string) error

	// ExecuteQuery runs user SQL.
	ExecuteQuery(ctx context.Context, query string) *QueryResult

	// ExecuteCellUpdate writes one cell addressed by primary key.
	ExecuteCellUpdate(ctx context.Context, u CellUpdate) error
}
