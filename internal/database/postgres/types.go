package postgres

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/joacominatel/pgkksql/internal/database"
)

var typeCodes = map[uint32]database.TypeCode{
	pgtype.BoolOID:        database.TypeBool,
	pgtype.Int2OID:        database.TypeInt16,
	pgtype.Int4OID:        database.TypeInt32,
	pgtype.Int8OID:        database.TypeInt64,
	pgtype.Float4OID:      database.TypeFloat32,
	pgtype.Float8OID:      database.TypeFloat64,
	pgtype.NumericOID:     database.TypeNumeric,
	pgtype.TextOID:        database.TypeText,
	pgtype.VarcharOID:     database.TypeText,
	pgtype.BPCharOID:      database.TypeText,
	pgtype.QCharOID:       database.TypeText,
	pgtype.DateOID:        database.TypeDate,
	pgtype.TimestampOID:   database.TypeTimestamp,
	pgtype.TimestamptzOID: database.TypeTimestampTZ,
}

// TypeCodeForOID maps a server type OID to its category.
func TypeCodeForOID(oid uint32) database.TypeCode {
	if tc, ok := typeCodes[oid]; ok {
		return tc
	}
	return database.TypeOther
}

// normalizeValue converts decoded values into the small set of Go types the
// edit overlay compares and the grid formats.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case pgtype.Numeric:
		// kept as exact decimal text; a float64 would round keys past 2^53
		val, err := x.Value()
		if err != nil {
			return nil
		}
		return val
	case [16]byte:
		return uuid.UUID(x).String()
	case []byte:
		return `\x` + hex.EncodeToString(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return x
		}
		return string(b)
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return nil
		}
		return normalizeValue(val)
	default:
		return v
	}
}
