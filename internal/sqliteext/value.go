// Package sqliteext implements Component L: two logical SQLite databases
// per app (persistent and in-memory), exposed to guests as connections and
// prepared statements bound by index, over database/sql and
// github.com/mattn/go-sqlite3.
package sqliteext

// ValueKind tags which variant a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt32
	KindInt64
	KindDouble
	KindText
	KindBlob
)

// Value is the closed set of SQL values a guest may bind or read back
// (spec.md §4.6.1).
type Value struct {
	Kind   ValueKind
	Int32  int32
	Int64  int64
	Double float64
	Text   string
	Blob   []byte
}

func NullValue() Value           { return Value{Kind: KindNull} }
func Int32Value(v int32) Value   { return Value{Kind: KindInt32, Int32: v} }
func Int64Value(v int64) Value   { return Value{Kind: KindInt64, Int64: v} }
func DoubleValue(v float64) Value { return Value{Kind: KindDouble, Double: v} }
func TextValue(v string) Value   { return Value{Kind: KindText, Text: v} }
func BlobValue(v []byte) Value   { return Value{Kind: KindBlob, Blob: v} }

// driverArg converts a Value to whatever database/sql expects as a bind
// parameter.
func (v Value) driverArg() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInt32:
		return v.Int32
	case KindInt64:
		return v.Int64
	case KindDouble:
		return v.Double
	case KindText:
		return v.Text
	case KindBlob:
		return v.Blob
	default:
		return nil
	}
}

// valueFromScan converts a database/sql-scanned interface{} back into a
// Value, inferring the kind from its Go type.
func valueFromScan(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return NullValue()
	case int64:
		return Int64Value(t)
	case float64:
		return DoubleValue(t)
	case string:
		return TextValue(t)
	case []byte:
		return BlobValue(t)
	default:
		return NullValue()
	}
}
