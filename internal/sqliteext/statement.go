package sqliteext

import (
	"database/sql"
	"sort"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Statement is a prepared statement owned by a single Connection
// (spec.md §4.6.1: bind/step/column/reset/finalize).
type Statement struct {
	conn  *Connection
	stmt  *sql.Stmt
	bound map[int]Value

	rows    *sql.Rows
	current []Value
}

// Bind attaches value to the 1-based parameter index.
func (s *Statement) Bind(index int, value Value) error {
	if s.rows != nil {
		return herrors.Wrapf(herrors.ErrMisuse, "cannot bind while a step is in progress; call Reset first")
	}
	s.bound[index] = value
	return nil
}

func (s *Statement) orderedArgs() []interface{} {
	indices := make([]int, 0, len(s.bound))
	for i := range s.bound {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	args := make([]interface{}, 0, len(indices))
	for _, i := range indices {
		args = append(args, s.bound[i].driverArg())
	}
	return args
}

// Step advances to the next row, returning true if one is available. The
// first Step call executes the query with the currently bound arguments.
func (s *Statement) Step() (bool, error) {
	if s.rows == nil {
		rows, err := s.stmt.Query(s.orderedArgs()...)
		if err != nil {
			return false, herrors.Wrap(err, "step statement")
		}
		s.rows = rows
	}
	if !s.rows.Next() {
		return false, s.rows.Err()
	}
	cols, err := s.rows.Columns()
	if err != nil {
		return false, herrors.Wrap(err, "read statement columns")
	}
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return false, herrors.Wrap(err, "scan statement row")
	}
	s.current = make([]Value, len(cols))
	for i, r := range raw {
		s.current[i] = valueFromScan(r)
	}
	return true, nil
}

// Column returns the 0-based column value from the current row.
func (s *Statement) Column(index int) (Value, error) {
	if index < 0 || index >= len(s.current) {
		return Value{}, herrors.Wrapf(herrors.ErrMisuse, "column index %d out of range", index)
	}
	return s.current[index], nil
}

// Reset clears the current result set and bound parameters so the
// statement can be re-executed.
func (s *Statement) Reset() error {
	if s.rows != nil {
		if err := s.rows.Close(); err != nil {
			return herrors.Wrap(err, "close statement rows")
		}
		s.rows = nil
	}
	s.current = nil
	s.bound = make(map[int]Value)
	return nil
}

// Finalize releases the statement and removes it from its connection's
// outstanding-statement set.
func (s *Statement) Finalize() error {
	if s.rows != nil {
		_ = s.rows.Close()
		s.rows = nil
	}
	s.conn.forgetStatement(s)
	if err := s.stmt.Close(); err != nil {
		return herrors.Wrap(err, "finalize statement")
	}
	return nil
}
