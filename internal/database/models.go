package database

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by session calls made without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrNoPrimaryKey refuses a cell update on a table without a detected primary key.
	ErrNoPrimaryKey = errors.New("no primary key - cannot update")
	// ErrNoRowUpdated is returned when a cell update's key matches no row.
	ErrNoRowUpdated = errors.New("no row matched the primary key")
)

// TypeCode is the coarse category of a result column's server type.
type TypeCode int

const (
	TypeOther TypeCode = iota
	TypeBool
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeNumeric
	TypeText
	TypeDate
	TypeTimestamp
	TypeTimestampTZ
)

func (t TypeCode) String() string {
	switch t {
	case TypeBool:
		return "boolean"
	case TypeInt16:
		return "smallint"
	case TypeInt32:
		return "integer"
	case TypeInt64:
		return "bigint"
	case TypeFloat32:
		return "real"
	case TypeFloat64:
		return "double precision"
	case TypeNumeric:
		return "numeric"
	case TypeText:
		return "text"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypeTimestampTZ:
		return "timestamptz"
	default:
		return "other"
	}
}

// Column represents a table column with its metadata.
type Column struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPrimary  bool
	Default    string
	OrdinalPos int
}

// TableName identifies a table by schema and name.
type TableName struct {
	Schema string
	Name   string
}

func (t TableName) String() string {
	return t.Schema + "." + t.Name
}

// TableRef binds a result set to the physical table it was read from.
type TableRef struct {
	Schema      string
	Table       string
	PrimaryKeys []string
}

// Bound reports whether a table was identified.
func (r TableRef) Bound() bool {
	return r.Schema != "" && r.Table != ""
}

// Editable reports whether cell edits can be written back.
func (r TableRef) Editable() bool {
	return r.Bound() && len(r.PrimaryKeys) > 0
}

// Row maps column names to decoded values.
type Row map[string]any

// QueryResult holds the outcome of one statement. Err is set instead of
// returning a Go error so that failures travel as data to the caller.
type QueryResult struct {
	Rows        []Row
	Columns     []string
	ColumnTypes []TypeCode
	Err         string
	RowCount    int64
	Duration    time.Duration
}

// Failed reports whether the statement errored.
func (r *QueryResult) Failed() bool {
	return r.Err != ""
}

// HasColumns reports whether the statement produced a row description.
func (r *QueryResult) HasColumns() bool {
	return len(r.Columns) > 0
}

// ErrorResult builds a failed QueryResult.
func ErrorResult(err error) *QueryResult {
	return &QueryResult{Err: err.Error()}
}

// CellUpdate addresses one cell by primary key.
type CellUpdate struct {
	Schema      string
	Table       string
	PrimaryKeys []string
	KeyValues   []any
	Column      string
	Value       any
}

// Validate checks the update is addressable.
func (u CellUpdate) Validate() error {
	if len(u.PrimaryKeys) == 0 {
		return ErrNoPrimaryKey
	}
	if len(u.PrimaryKeys) != len(u.KeyValues) {
		return fmt.Errorf("primary key mismatch: %d columns, %d values", len(u.PrimaryKeys), len(u.KeyValues))
	}
	if u.Table == "" || u.Column == "" {
		return errors.New("update target is incomplete")
	}
	return nil
}
