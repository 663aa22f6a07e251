package app

import (
	"fmt"

	"github.com/joacominatel/pgkksql/internal/database"
	"github.com/joacominatel/pgkksql/internal/resolver"
)

const (
	StatusQueryFailed  = "Query failed - see error below"
	StatusCommitted    = "Changes committed"
	StatusRolledBack   = "Changes rolled back"
	StatusExecuting    = "Executing..."
	StatusNotConnected = "Not connected"
)

func plural(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// TableStatus describes a tabular result and whether it can be edited.
func TableStatus(rowCount int64, rowLimit int, ref database.TableRef, query string) string {
	msg := plural(rowCount, "row")
	if rowLimit > 0 && rowCount == int64(rowLimit) {
		msg += " (limited)"
	}

	switch {
	case ref.Editable():
		msg += fmt.Sprintf(" • %s.%s • Enter to edit", ref.Schema, ref.Table)
	case ref.Bound():
		msg += fmt.Sprintf(" • %s.%s • Read-only (no primary key)", ref.Schema, ref.Table)
	case resolver.HasJoin(query):
		msg += " • Read-only (JOINs not editable)"
	default:
		msg += " • Read-only (table not detected)"
	}
	return msg
}

// KeyMissingStatus describes a table result that leaves out a primary key
// column, so its rows cannot be addressed.
func KeyMissingStatus(rowCount int64, ref database.TableRef) string {
	return fmt.Sprintf("%s • %s.%s • Read-only (primary key not selected)",
		plural(rowCount, "row"), ref.Schema, ref.Table)
}

// EditStatus describes a result with pending cell edits.
func EditStatus(rowCount int64, edits int) string {
	return fmt.Sprintf("%s • %s edited (uncommitted)", plural(rowCount, "row"), plural(int64(edits), "cell"))
}

// DMLStatus describes an uncommitted statement.
func DMLStatus(rowCount int64) string {
	return plural(rowCount, "row") + " affected (uncommitted)"
}

// withStagedEdits notes edits waiting behind a message.
func withStagedEdits(msg string, edits int) string {
	if edits == 0 {
		return msg
	}
	return fmt.Sprintf("%s • %s staged (Esc to view)", msg, plural(int64(edits), "cell edit"))
}
