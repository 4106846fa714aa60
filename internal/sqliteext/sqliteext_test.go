package sqliteext

import "testing"

func TestPragmaRejected(t *testing.T) {
	conn, err := Open(":memory:", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := conn.Execute("PRAGMA journal_mode=WAL"); err == nil {
		t.Fatalf("expected PRAGMA to be rejected")
	}
	if _, err := conn.Prepare("PRAGMA foreign_keys=ON"); err == nil {
		t.Fatalf("expected PRAGMA prepare to be rejected")
	}
}

func TestBindStepColumnRoundTrip(t *testing.T) {
	conn, err := Open(":memory:", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if err := conn.Execute("CREATE TABLE kv (k TEXT, v INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Execute("INSERT INTO kv (k, v) VALUES ('a', 1)"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	stmt, err := conn.Prepare("SELECT k, v FROM kv WHERE k = ?")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer stmt.Finalize()

	if err := stmt.Bind(1, TextValue("a")); err != nil {
		t.Fatalf("bind: %v", err)
	}
	hasRow, err := stmt.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !hasRow {
		t.Fatalf("expected a row")
	}
	k, err := stmt.Column(0)
	if err != nil {
		t.Fatalf("column 0: %v", err)
	}
	if k.Text != "a" {
		t.Fatalf("expected k=a, got %+v", k)
	}
}

func TestFinalizeRemovesFromOutstandingSet(t *testing.T) {
	conn, err := Open(":memory:", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stmt, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := stmt.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// Closing the connection must not re-finalize stmt (it was already
	// removed from the outstanding set).
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestQueryBuilderRendersExpectedSQL(t *testing.T) {
	q := NewQueryBuilder("kv").Select("k", "v").Where("k = ?", TextValue("a")).OrderBy("v").Limit(10)
	sqlText, args := q.Build()
	want := "SELECT k, v FROM kv WHERE k = ? ORDER BY v LIMIT ?"
	if sqlText != want {
		t.Fatalf("sql = %q, want %q", sqlText, want)
	}
	if len(args) != 2 || args[0].Text != "a" || args[1].Int64 != 10 {
		t.Fatalf("unexpected args %+v", args)
	}
}
