package grid

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/joacominatel/pgkksql/internal/database"
)

// EditorKind selects the input widget used to edit a cell.
type EditorKind int

const (
	EditorText EditorKind = iota
	EditorChoice
	EditorInteger
	EditorDecimal
)

func (k EditorKind) String() string {
	switch k {
	case EditorChoice:
		return "choice"
	case EditorInteger:
		return "integer"
	case EditorDecimal:
		return "decimal"
	default:
		return "text"
	}
}

const (
	minInteger = math.MinInt32
	maxInteger = math.MaxInt32
	maxDecimal = 1e15
	// DecimalPlaces is the fixed precision of the decimal editor.
	DecimalPlaces = 6

	nullText  = "NULL"
	trueText  = "true"
	falseText = "false"
	trueMark  = "✓"
	falseMark = "✗"
)

// ErrInvalidValue is returned when editor input cannot be coerced.
var ErrInvalidValue = errors.New("invalid value")

// Editor describes how cells of one type category are displayed and edited.
type Editor struct {
	Kind EditorKind
	// Choices lists the accepted inputs of a choice editor, in display order.
	Choices []string
	// Parse coerces editor input into the value written to the overlay.
	Parse func(input string) (any, error)
	// Format renders a value for display in the grid.
	Format func(v any) string
	// Input renders a value as the editor's initial text.
	Input func(v any) string
	// Same reports whether v leaves the fetched value unchanged. Nil uses the
	// generic comparison.
	Same func(original, v any) bool
}

func (e Editor) unchanged(original, v any) bool {
	if e.Same != nil {
		return e.Same(original, v)
	}
	return sameValue(original, v, e.Input)
}

var (
	boolEditor = Editor{
		Kind:    EditorChoice,
		Choices: []string{trueText, falseText, nullText},
		Parse:   parseBool,
		Format:  formatBool,
		Input:   inputBool,
	}
	integerEditor = Editor{
		Kind:   EditorInteger,
		Parse:  parseInteger,
		Format: formatNatural,
		Input:  inputInteger,
	}
	decimalEditor = Editor{
		Kind:   EditorDecimal,
		Parse:  parseDecimal,
		Format: formatNatural,
		Input:  inputDecimal,
	}
	numericEditor = Editor{
		Kind:   EditorDecimal,
		Parse:  parseNumeric,
		Format: formatNatural,
		Input:  inputNumeric,
		Same:   sameDecimal,
	}
	textEditor = Editor{
		Kind:   EditorText,
		Parse:  parseText,
		Format: formatNatural,
		Input:  inputText,
	}
)

var editors = map[database.TypeCode]Editor{
	database.TypeBool:        boolEditor,
	database.TypeInt16:       integerEditor,
	database.TypeInt32:       integerEditor,
	database.TypeInt64:       integerEditor,
	database.TypeFloat32:     decimalEditor,
	database.TypeFloat64:     decimalEditor,
	database.TypeNumeric:     numericEditor,
	database.TypeText:        textEditor,
	database.TypeDate:        withFormat(textEditor, formatTime("2006-01-02")),
	database.TypeTimestamp:   withFormat(textEditor, formatTime("2006-01-02 15:04:05.999999")),
	database.TypeTimestampTZ: withFormat(textEditor, formatTime("2006-01-02 15:04:05.999999Z07:00")),
	database.TypeOther:       textEditor,
}

// EditorFor returns the editor for a type category. Unknown categories edit
// as free text.
func EditorFor(tc database.TypeCode) Editor {
	if e, ok := editors[tc]; ok {
		return e
	}
	return textEditor
}

func withFormat(e Editor, format func(any) string) Editor {
	e.Format = format
	e.Input = func(v any) string {
		if v == nil {
			return ""
		}
		return format(v)
	}
	return e
}

func parseBool(input string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case trueText:
		return true, nil
	case falseText:
		return false, nil
	case "null":
		return nil, nil
	}
	return nil, fmt.Errorf("%w: expected true, false or NULL", ErrInvalidValue)
}

func formatBool(v any) string {
	b, ok := v.(bool)
	if !ok {
		return formatNatural(v)
	}
	if b {
		return trueMark
	}
	return falseMark
}

func inputBool(v any) string {
	b, ok := v.(bool)
	switch {
	case !ok:
		return nullText
	case b:
		return trueText
	default:
		return falseText
	}
}

// parseInteger accepts any integer literal and clamps it to the signed
// 32-bit range.
func parseInteger(input string) (any, error) {
	s := strings.TrimSpace(input)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if strings.HasPrefix(s, "-") {
				return int64(minInteger), nil
			}
			return int64(maxInteger), nil
		}
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, input)
	}
	return max(int64(minInteger), min(n, int64(maxInteger))), nil
}

func inputInteger(v any) string {
	if v == nil {
		return "0"
	}
	return formatNatural(v)
}

func parseDecimal(input string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, input)
	}
	f = max(-maxDecimal, min(f, maxDecimal))
	scale := math.Pow10(DecimalPlaces)
	return math.Round(f*scale) / scale, nil
}

func inputDecimal(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', DecimalPlaces, 64)
	case int64:
		return strconv.FormatFloat(float64(x), 'f', DecimalPlaces, 64)
	case nil:
		return strconv.FormatFloat(0, 'f', DecimalPlaces, 64)
	default:
		return formatNatural(v)
	}
}

var (
	maxNumeric = new(big.Rat).SetInt64(int64(maxDecimal))
	minNumeric = new(big.Rat).Neg(maxNumeric)
)

// parseNumeric is parseDecimal for numeric columns. The value stays exact
// decimal text, so digits beyond float64 precision survive the edit.
func parseNumeric(input string) (any, error) {
	r, ok := decimalRat(strings.TrimSpace(input))
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, input)
	}
	switch {
	case r.Cmp(maxNumeric) > 0:
		r.Set(maxNumeric)
	case r.Cmp(minNumeric) < 0:
		r.Set(minNumeric)
	}
	return trimDecimal(r.FloatString(DecimalPlaces)), nil
}

func inputNumeric(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return inputDecimal(v)
}

// sameDecimal compares numbers by value, so "1.50" and "1.5" are the same.
func sameDecimal(original, v any) bool {
	a, okA := decimalRat(original)
	b, okB := decimalRat(v)
	if okA && okB {
		return a.Cmp(b) == 0
	}
	return sameValue(original, v, inputNumeric)
}

func decimalRat(v any) (*big.Rat, bool) {
	switch x := v.(type) {
	case string:
		if x == "" || strings.Contains(x, "/") {
			return nil, false
		}
		return new(big.Rat).SetString(x)
	case int64:
		return new(big.Rat).SetInt64(x), true
	case float64:
		r := new(big.Rat).SetFloat64(x)
		return r, r != nil
	}
	return nil, false
}

func trimDecimal(s string) string {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// parseText maps empty input to NULL.
func parseText(input string) (any, error) {
	if input == "" {
		return nil, nil
	}
	return input, nil
}

func inputText(v any) string {
	if v == nil {
		return ""
	}
	return formatNatural(v)
}

func formatTime(layout string) func(any) string {
	return func(v any) string {
		if t, ok := v.(time.Time); ok {
			return t.Format(layout)
		}
		return formatNatural(v)
	}
}

// formatNatural renders a value in its plain textual form.
func formatNatural(v any) string {
	switch x := v.(type) {
	case nil:
		return nullText
	case string:
		return x
	case bool:
		return formatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
