package describe

import "strings"

// ColumnType is the aggregation class of a column, derived from its declared type.
type ColumnType int

// Column classes.
const (
	Textual ColumnType = iota // text, boolean, binary, nested and unknown types
	Numeric
	Temporal
	ListLike
)

func (c ColumnType) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case Temporal:
		return "temporal"
	case ListLike:
		return "list"
	default:
		return "textual"
	}
}

var numericTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "INTEGER": true, "BIGINT": true, "HUGEINT": true,
	"UTINYINT": true, "USMALLINT": true, "UINTEGER": true, "UBIGINT": true, "UHUGEINT": true,
	"INT1": true, "INT2": true, "INT4": true, "INT8": true, "INT": true, "SHORT": true, "LONG": true,
	"FLOAT": true, "FLOAT4": true, "REAL": true, "DOUBLE": true, "FLOAT8": true,
	"DECIMAL": true, "NUMERIC": true,
}

// temporalTypes maps temporal type names to their display form.
var temporalTypes = map[string]temporalKind{
	"DATE":                     temporalDate,
	"TIME":                     temporalTime,
	"TIME WITH TIME ZONE":      temporalTime,
	"TIMETZ":                   temporalTime,
	"TIME_NS":                  temporalTime,
	"TIMESTAMP":                temporalTimestamp,
	"DATETIME":                 temporalTimestamp,
	"TIMESTAMP_S":              temporalTimestamp,
	"TIMESTAMP_MS":             temporalTimestamp,
	"TIMESTAMP_US":             temporalTimestamp,
	"TIMESTAMP_NS":             temporalTimestamp,
	"TIMESTAMP WITH TIME ZONE": temporalTimestampTZ,
	"TIMESTAMPTZ":              temporalTimestampTZ,
	"INTERVAL":                 temporalInterval,
}

// baseType upper-cases a declared type and strips its parameters,
// e.g. "decimal(10,2)" → "DECIMAL".
func baseType(declared string) string {
	t := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// Classify maps a declared column type to its ColumnType. Unknown types
// classify as Textual.
func Classify(declared string) ColumnType {
	t := strings.ToUpper(strings.TrimSpace(declared))
	if strings.HasSuffix(t, "]") || strings.HasPrefix(t, "LIST(") || strings.HasPrefix(t, "ARRAY(") {
		return ListLike
	}
	base := baseType(t)
	if numericTypes[base] {
		return Numeric
	}
	if _, ok := temporalTypes[base]; ok {
		return Temporal
	}
	return Textual
}

// isDecimal reports whether the declared type is a fixed-point decimal.
func isDecimal(declared string) bool {
	switch baseType(declared) {
	case "DECIMAL", "NUMERIC":
		return true
	}
	return false
}

// IsBoolean reports whether the declared type is a boolean.
func IsBoolean(declared string) bool {
	switch baseType(declared) {
	case "BOOLEAN", "BOOL", "LOGICAL":
		return true
	}
	return false
}

// IsBinary reports whether the declared type is a byte string.
func IsBinary(declared string) bool {
	switch baseType(declared) {
	case "BLOB", "BYTEA", "BINARY", "VARBINARY":
		return true
	}
	return false
}

type temporalKind int

const (
	temporalNone temporalKind = iota
	temporalDate
	temporalTime
	temporalTimestamp
	temporalTimestampTZ
	temporalInterval
)

func temporalKindOf(declared string) temporalKind {
	if Classify(declared) != Temporal {
		return temporalNone
	}
	return temporalTypes[baseType(declared)]
}
