// Package grid holds the current result set and the overlay of pending cell
// edits layered on top of it.
package grid

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/logger"
)

// ErrorColumn is the single column of a result that carries a failure
// message instead of data.
const ErrorColumn = "Error"

var (
	// ErrReadOnly is returned when writing to a result that cannot be edited.
	ErrReadOnly = errors.New("result is read-only")
	// ErrOutOfRange is returned for coordinates outside the result.
	ErrOutOfRange = errors.New("cell out of range")
)

// Kind classifies what the model currently shows.
type Kind int

const (
	KindEmpty Kind = iota
	KindTable
	KindError
	KindDML
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindError:
		return "error"
	case KindDML:
		return "dml"
	default:
		return "empty"
	}
}

// Cell addresses a value by row and column index.
type Cell struct {
	Row int
	Col int
}

// Edit is a pending change ready to be written back.
type Edit struct {
	Cell
	Column    string
	KeyValues []any
	Value     any
}

// Writer is the part of a database session used to persist edits.
type Writer interface {
	ExecuteCellUpdate(ctx context.Context, u database.CellUpdate) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Model is the result grid with its edit overlay. It is not safe for
// concurrent use; all calls happen on the UI loop.
//
// rows, columns, types and ref describe the last tabular result. Error and
// DML outcomes only change what is shown; while edits are staged the table
// underneath them is kept so they can still be committed.
type Model struct {
	rows    []database.Row
	columns []string
	types   []database.TypeCode
	ref     database.TableRef
	kind    Kind
	errMsg  string

	edits map[Cell]any

	dmlRows    int64
	dmlPending bool

	onEdits   []func(count int)
	onResults []func()
}

// New returns an empty model.
func New() *Model {
	return &Model{edits: make(map[Cell]any)}
}

// OnEditsChanged registers fn to receive the edit count after every change
// to the overlay.
func (m *Model) OnEditsChanged(fn func(count int)) {
	m.onEdits = append(m.onEdits, fn)
}

// OnResultsChanged registers fn to be called whenever the result set is
// replaced.
func (m *Model) OnResultsChanged(fn func()) {
	m.onResults = append(m.onResults, fn)
}

func (m *Model) notifyEdits() {
	n := len(m.edits)
	for _, fn := range m.onEdits {
		fn(n)
	}
}

func (m *Model) notifyResults() {
	for _, fn := range m.onResults {
		fn()
	}
}

// SetRows replaces the result set and drops every pending edit. A result
// made of the single error column is classified as an error.
func (m *Model) SetRows(rows []database.Row, columns []string, types []database.TypeCode) {
	if len(columns) == 1 && columns[0] == ErrorColumn {
		msg := ""
		if len(rows) > 0 {
			msg, _ = rows[0][ErrorColumn].(string)
		}
		m.SetError(msg)
		return
	}
	if rows == nil {
		rows = []database.Row{}
	}
	m.rows = rows
	m.columns = columns
	m.types = types
	m.ref = database.TableRef{}
	m.kind = KindTable
	m.errMsg = ""
	clear(m.edits)

	m.notifyResults()
	m.notifyEdits()
}

// SetError shows a failure message. A failed statement rolls the
// transaction back, so no uncommitted statement remains. Staged edits live
// only in the overlay and survive.
func (m *Model) SetError(message string) {
	m.kind = KindError
	m.errMsg = message
	m.dmlPending = false
	m.dropTableUnlessEdited()
	m.notifyResults()
}

// SetDML records the affected row count of a statement that returned no
// rows. The count stays pending until Commit or Rollback. Staged edits
// survive.
func (m *Model) SetDML(rowCount int64) {
	m.kind = KindDML
	m.errMsg = ""
	m.dmlRows = rowCount
	m.dmlPending = true
	m.dropTableUnlessEdited()
	m.notifyResults()
}

func (m *Model) dropTableUnlessEdited() {
	if len(m.edits) > 0 {
		return
	}
	m.rows = []database.Row{}
	m.columns = nil
	m.types = nil
	m.ref = database.TableRef{}
}

// ShowTable switches back from an error or DML message to the table the
// staged edits belong to. It reports false when there is no such table.
func (m *Model) ShowTable() bool {
	if m.kind == KindTable || m.columns == nil {
		return false
	}
	m.kind = KindTable
	m.errMsg = ""
	m.notifyResults()
	return true
}

// HasHiddenTable reports whether an edited table sits behind the message
// currently shown.
func (m *Model) HasHiddenTable() bool {
	return m.kind != KindTable && m.columns != nil
}

// Clear resets to the empty state.
func (m *Model) Clear() {
	m.rows = nil
	m.columns = nil
	m.types = nil
	m.ref = database.TableRef{}
	m.kind = KindEmpty
	m.errMsg = ""
	m.dmlRows = 0
	m.dmlPending = false
	clear(m.edits)

	m.notifyResults()
	m.notifyEdits()
}

// Bind attaches the source table of a tabular result. Error and DML results
// are never bound.
func (m *Model) Bind(ref database.TableRef) {
	if m.kind != KindTable {
		return
	}
	m.ref = ref
}

// Kind returns what the model currently shows.
func (m *Model) Kind() Kind { return m.kind }

// IsError reports whether the result is a failure message.
func (m *Model) IsError() bool { return m.kind == KindError }

// Ref returns the bound table, if any.
func (m *Model) Ref() database.TableRef { return m.ref }

func (m *Model) RowCount() int { return len(m.rows) }

func (m *Model) ColumnCount() int { return len(m.columns) }

func (m *Model) Columns() []string { return slices.Clone(m.columns) }

func (m *Model) ColumnTypes() []database.TypeCode { return slices.Clone(m.types) }

// ErrorMessage returns the failure text of an error result.
func (m *Model) ErrorMessage() string {
	if m.kind != KindError {
		return ""
	}
	return m.errMsg
}

// DMLRowCount returns the affected row count of the last statement and
// whether it is still uncommitted.
func (m *Model) DMLRowCount() (int64, bool) {
	return m.dmlRows, m.dmlPending
}

// Editable reports whether cell edits can be written back: the result is
// tabular, bound to a table with a primary key, and every key column is
// part of the result.
func (m *Model) Editable() bool {
	return m.kind == KindTable && m.keysInResult()
}

func (m *Model) keysInResult() bool {
	if !m.ref.Editable() {
		return false
	}
	for _, pk := range m.ref.PrimaryKeys {
		if !slices.Contains(m.columns, pk) {
			return false
		}
	}
	return true
}

// ColumnType returns the type category of a column.
func (m *Model) ColumnType(col int) database.TypeCode {
	if col < 0 || col >= len(m.types) {
		return database.TypeOther
	}
	return m.types[col]
}

// Editor returns the editor for a column.
func (m *Model) Editor(col int) Editor {
	return EditorFor(m.ColumnType(col))
}

func (m *Model) inRange(row, col int) bool {
	return row >= 0 && row < len(m.rows) && col >= 0 && col < len(m.columns)
}

// Original returns the fetched value of a cell, ignoring edits.
func (m *Model) Original(row, col int) any {
	if !m.inRange(row, col) {
		return nil
	}
	return m.rows[row][m.columns[col]]
}

// Value returns the pending edit of a cell if there is one, else the
// fetched value.
func (m *Model) Value(row, col int) any {
	if v, ok := m.edits[Cell{row, col}]; ok {
		return v
	}
	return m.Original(row, col)
}

// Display returns the formatted value of a cell.
func (m *Model) Display(row, col int) string {
	if !m.inRange(row, col) {
		return ""
	}
	return m.Editor(col).Format(m.Value(row, col))
}

// IsEdited reports whether a cell has a pending edit.
func (m *Model) IsEdited(row, col int) bool {
	_, ok := m.edits[Cell{row, col}]
	return ok
}

// Set records v for a cell. Writing the fetched value back removes the edit.
func (m *Model) Set(row, col int, v any) error {
	if !m.Editable() {
		return ErrReadOnly
	}
	if !m.inRange(row, col) {
		return ErrOutOfRange
	}

	c := Cell{row, col}
	if m.Editor(col).unchanged(m.Original(row, col), v) {
		delete(m.edits, c)
	} else {
		m.edits[c] = v
	}
	m.notifyEdits()
	return nil
}

// SetInput parses editor input for a cell with the column's editor and
// records the result.
func (m *Model) SetInput(row, col int, input string) error {
	v, err := m.Editor(col).Parse(input)
	if err != nil {
		return err
	}
	return m.Set(row, col, v)
}

// EditCount returns the number of pending edits.
func (m *Model) EditCount() int { return len(m.edits) }

// HasEdits reports whether any edit is pending.
func (m *Model) HasEdits() bool { return len(m.edits) > 0 }

// HasPendingChanges reports whether edits or an uncommitted statement are
// waiting for commit or rollback.
func (m *Model) HasPendingChanges() bool {
	return m.HasEdits() || m.dmlPending
}

// PendingEdits returns the overlay ordered by row then column, with key
// values taken from the fetched rows.
func (m *Model) PendingEdits() []Edit {
	out := make([]Edit, 0, len(m.edits))
	for c, v := range m.edits {
		keys := make([]any, len(m.ref.PrimaryKeys))
		for i, pk := range m.ref.PrimaryKeys {
			keys[i] = m.rows[c.Row][pk]
		}
		out = append(out, Edit{
			Cell:      c,
			Column:    m.columns[c.Col],
			KeyValues: keys,
			Value:     v,
		})
	}
	slices.SortFunc(out, func(a, b Edit) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return out
}

// DiscardEdits drops the overlay without touching the database.
func (m *Model) DiscardEdits() {
	if len(m.edits) == 0 {
		return
	}
	clear(m.edits)
	m.notifyEdits()
}

// Commit writes every pending edit and commits the transaction. The first
// failing update rolls the transaction back and leaves the overlay as it
// was. After all updates succeed the edited values become the fetched
// values, the overlay is cleared and the transaction committed.
func (m *Model) Commit(ctx context.Context, w Writer) error {
	if len(m.edits) > 0 {
		if !m.keysInResult() {
			return database.ErrNoPrimaryKey
		}

		edits := m.PendingEdits()
		for _, e := range edits {
			err := w.ExecuteCellUpdate(ctx, database.CellUpdate{
				Schema:      m.ref.Schema,
				Table:       m.ref.Table,
				PrimaryKeys: m.ref.PrimaryKeys,
				KeyValues:   e.KeyValues,
				Column:      e.Column,
				Value:       e.Value,
			})
			if err != nil {
				if rbErr := w.Rollback(ctx); rbErr != nil {
					logger.Warn("Rollback after failed update", "error", rbErr)
				}
				return fmt.Errorf("update %s: %w", e.Column, err)
			}
		}

		for _, e := range edits {
			m.rows[e.Row][e.Column] = e.Value
		}
		clear(m.edits)
		m.notifyEdits()
		logger.Info("Edits written", "table", m.ref.Schema+"."+m.ref.Table, "cells", len(edits))
	}

	if err := w.Commit(ctx); err != nil {
		return err
	}
	m.dmlPending = false
	return nil
}

// Rollback rolls the transaction back and drops every pending edit and
// uncommitted statement, even when the rollback itself fails.
func (m *Model) Rollback(ctx context.Context, w Writer) error {
	err := w.Rollback(ctx)
	m.dmlPending = false
	clear(m.edits)
	if m.kind != KindTable {
		m.dropTableUnlessEdited()
	}
	m.notifyEdits()
	return err
}

// sameValue compares an edit against the fetched value. Text input is also
// compared against the original as the editor renders it, so retyping a date
// counts as no change.
func sameValue(original, v any, input func(any) string) bool {
	if original == nil || v == nil {
		return original == nil && v == nil
	}
	if a, ok := original.(time.Time); ok {
		if b, ok := v.(time.Time); ok {
			return a.Equal(b)
		}
	}
	if reflect.DeepEqual(original, v) {
		return true
	}
	if s, ok := v.(string); ok {
		if _, isString := original.(string); !isString {
			return input(original) == s
		}
	}
	return false
}
