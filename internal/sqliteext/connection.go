package sqliteext

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// pragmaPrefix is rejected verbatim (case-sensitive, with the trailing
// space) before reaching the SQL engine (spec.md §4.6.1): it guards against
// guests tampering with journal mode, foreign-key checks, and similar
// connection-wide settings the host manages itself.
const pragmaPrefix = "PRAGMA "

func rejectPragma(sql string) error {
	if strings.HasPrefix(sql, pragmaPrefix) {
		return herrors.Wrapf(herrors.ErrMisuse, "PRAGMA statements are not permitted from guests")
	}
	return nil
}

// Connection is one open SQLite database, owned by the app that opened it
// and never shared across apps (spec.md §5 locking discipline).
type Connection struct {
	mu         sync.Mutex
	db         *sql.DB
	readonly   bool
	memory     bool
	statements map[*Statement]struct{}
}

// Open opens dsn (a file path, or ":memory:" for the in-memory database)
// under the given access mode.
func Open(dsn string, readonly bool) (*Connection, error) {
	d := dsn
	if readonly {
		d = dsn + "?mode=ro"
	}
	db, err := sql.Open("sqlite3", d)
	if err != nil {
		return nil, herrors.Wrap(err, "open sqlite connection")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, herrors.Wrap(err, "ping sqlite connection")
	}
	return &Connection{db: db, readonly: readonly, memory: dsn == ":memory:", statements: make(map[*Statement]struct{})}, nil
}

// Prepare compiles sql into a Statement owned by this connection.
func (c *Connection) Prepare(sqlText string) (*Statement, error) {
	if err := rejectPragma(sqlText); err != nil {
		return nil, err
	}
	stmt, err := c.db.Prepare(sqlText)
	if err != nil {
		return nil, herrors.Wrapf(err, "prepare statement: %s", sqlText)
	}
	s := &Statement{conn: c, stmt: stmt, bound: make(map[int]Value)}
	c.mu.Lock()
	c.statements[s] = struct{}{}
	c.mu.Unlock()
	return s, nil
}

// Execute runs sql directly, without returning rows (spec.md §4.6.1
// "execute(sql)"). Guests are responsible for explicit BEGIN/COMMIT; the
// host does not wrap writes in an implicit transaction.
func (c *Connection) Execute(sqlText string) error {
	if err := rejectPragma(sqlText); err != nil {
		return err
	}
	if _, err := c.db.Exec(sqlText); err != nil {
		return herrors.Wrapf(err, "execute: %s", sqlText)
	}
	return nil
}

// Errcode surfaces the last error observed, for guests polling for
// SQLite-level diagnostics; database/sql doesn't expose a sticky errcode,
// so this is derived from the most recent operation's result instead.
func (c *Connection) Errcode(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}

// Close finalizes every outstanding statement before closing the
// underlying database handle (spec.md §4.6.1: "dropping the connection
// finalizes all its outstanding statements").
func (c *Connection) Close() error {
	c.mu.Lock()
	stmts := make([]*Statement, 0, len(c.statements))
	for s := range c.statements {
		stmts = append(stmts, s)
	}
	c.mu.Unlock()
	for _, s := range stmts {
		_ = s.Finalize()
	}
	return c.db.Close()
}

func (c *Connection) forgetStatement(s *Statement) {
	c.mu.Lock()
	delete(c.statements, s)
	c.mu.Unlock()
}
