package sqliteext

import "strings"

// QueryBuilder assembles parameterized SELECT statements incrementally —
// a convenience layered on top of the bind/step/column primitives, absent
// from spec.md's distillation but present in the original implementation's
// guest-facing SQL helpers (SPEC_FULL.md §12).
type QueryBuilder struct {
	table string
	cols  []string
	where []string
	args  []Value
	order string
	limit int
	hasLimit bool
}

// NewQueryBuilder starts a query against table.
func NewQueryBuilder(table string) *QueryBuilder {
	return &QueryBuilder{table: table}
}

// Select lists the columns to return; omitted entirely, it selects "*".
func (q *QueryBuilder) Select(cols ...string) *QueryBuilder {
	q.cols = cols
	return q
}

// Where appends a condition, ANDed with any others, parameterized by a
// single "?" placeholder bound to arg.
func (q *QueryBuilder) Where(cond string, arg Value) *QueryBuilder {
	q.where = append(q.where, cond)
	q.args = append(q.args, arg)
	return q
}

// OrderBy sets the ORDER BY clause verbatim.
func (q *QueryBuilder) OrderBy(col string) *QueryBuilder {
	q.order = col
	return q
}

// Limit caps the number of returned rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	q.hasLimit = true
	return q
}

// Build renders the final SQL text and its positional arguments.
func (q *QueryBuilder) Build() (string, []Value) {
	cols := "*"
	if len(q.cols) > 0 {
		cols = strings.Join(q.cols, ", ")
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if q.order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.order)
	}
	if q.hasLimit {
		b.WriteString(" LIMIT ?")
		q.args = append(q.args, Int64Value(int64(q.limit)))
	}
	return b.String(), q.args
}

// Prepare builds the query and prepares it against conn, binding every
// accumulated argument in order.
func (q *QueryBuilder) Prepare(conn *Connection) (*Statement, error) {
	sqlText, args := q.Build()
	stmt, err := conn.Prepare(sqlText)
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		if err := stmt.Bind(i+1, a); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}
