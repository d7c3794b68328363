package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/record"
	"github.com/toonlabs/toondb/pkg/core/toon"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id      INTEGER PRIMARY KEY,
			name    TEXT NOT NULL,
			age     INTEGER,
			status  TEXT NOT NULL DEFAULT 'active'
		)`)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	a, err := NewWithDB(adapters.Config{Type: "sqlite"}, db)
	if err != nil {
		t.Fatalf("NewWithDB failed: %v", err)
	}
	return a
}

func decode(t *testing.T, text string) *record.RowSet {
	t.Helper()
	rs, err := toon.NewCodec().Decode(text)
	if err != nil {
		t.Fatalf("failed to decode result %q: %v", text, err)
	}
	return rs
}

func TestInsertAndFetchGeneratedValues(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	text, outcome, err := a.InsertAndFetch(ctx, "users",
		record.New().Set("name", "Alice").Set("age", 30), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}
	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}

	rs := decode(t, text)
	if rs.Len() != 1 {
		t.Fatalf("rows = %v", rs.Rows)
	}
	row := rs.Record(0)
	if id, _ := row.Get("id"); id != int64(1) {
		t.Errorf("generated id = %v, want 1", id)
	}
	if status, _ := row.Get("status"); status != "active" {
		t.Errorf("default status = %v, want active", status)
	}
}

func TestInsertManyAndFetch(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	rows := []*record.Record{
		record.New().Set("name", "a").Set("age", 1),
		record.New().Set("name", "b").Set("age", 2),
		record.New().Set("name", "c").Set("age", 3),
	}
	text, outcome, err := a.InsertManyAndFetch(ctx, "users", rows, adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertManyAndFetch failed: %v", err)
	}
	if outcome != adapters.MatchMany {
		t.Errorf("outcome = %v, want MatchMany", outcome)
	}
	if rs := decode(t, text); rs.Len() != 3 {
		t.Errorf("rows = %v", rs.Rows)
	}
}

func TestUpdateAndFetch(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, _, err := a.InsertAndFetch(ctx, "users",
		record.New().Set("name", "Bob").Set("age", 20), adapters.WriteOptions{}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	text, outcome, err := a.UpdateAndFetch(ctx, "users",
		record.New().Set("age", 21),
		record.New().Set("name", "Bob"),
		adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("UpdateAndFetch failed: %v", err)
	}
	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}

	row := decode(t, text).Record(0)
	if age, _ := row.Get("age"); age != int64(21) {
		t.Errorf("age = %v, want 21", age)
	}
}

func TestUpdateNoMatch(t *testing.T) {
	a := newTestAdapter(t)

	text, outcome, err := a.UpdateAndFetch(context.Background(), "users",
		record.New().Set("age", 99),
		record.New().Set("name", "nobody"),
		adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("UpdateAndFetch failed: %v", err)
	}
	if outcome != adapters.MatchNone {
		t.Errorf("outcome = %v, want MatchNone", outcome)
	}
	if rs := decode(t, text); rs.Len() != 0 {
		t.Errorf("rows = %v, want empty", rs.Rows)
	}
}

func TestDeleteGuardAndOverride(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if _, _, err := a.InsertAndFetch(ctx, "users",
			record.New().Set("name", name), adapters.WriteOptions{}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	if _, err := a.Delete(ctx, "users", nil, adapters.WriteOptions{}); !errors.Is(err, adapters.ErrFullTable) {
		t.Errorf("err = %v, want ErrFullTable", err)
	}

	n, err := a.Delete(ctx, "users", record.New().Set("name", "a"), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	n, err = a.Delete(ctx, "users", nil, adapters.WriteOptions{AllowFullTable: true})
	if err != nil {
		t.Fatalf("Delete all failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestConflictIgnore(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	row := record.New().Set("id", 1).Set("name", "x")
	if _, _, err := a.InsertAndFetch(ctx, "users", row, adapters.WriteOptions{}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, outcome, err := a.InsertAndFetch(ctx, "users", row,
		adapters.WriteOptions{Conflict: adapters.ConflictIgnore})
	if err != nil {
		t.Fatalf("ignored insert failed: %v", err)
	}
	if outcome != adapters.MatchNone {
		t.Errorf("outcome = %v, want MatchNone", outcome)
	}
}

func TestQueryToonText(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	rows := []*record.Record{
		record.New().Set("name", "Alice").Set("age", 30),
		record.New().Set("name", "Bob").Set("age", 25),
	}
	if _, _, err := a.InsertManyAndFetch(ctx, "users", rows, adapters.WriteOptions{}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	text, err := a.Query(ctx, "SELECT name, age FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	want := "[2]{name,age}:\n  Alice,30\n  Bob,25"
	if text != want {
		t.Errorf("Query = %q, want %q", text, want)
	}
}

func TestQueryWithParams(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, _, err := a.InsertAndFetch(ctx, "users",
		record.New().Set("name", "Carol").Set("age", 40), adapters.WriteOptions{}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	text, err := a.Query(ctx, "SELECT name FROM users WHERE age > ?", 35)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if rs := decode(t, text); rs.Len() != 1 || rs.Rows[0][0] != "Carol" {
		t.Errorf("result = %q", text)
	}
}

func TestGetSchema(t *testing.T) {
	a := newTestAdapter(t)

	ts, err := a.GetSchema(context.Background(), "users")
	if err != nil {
		t.Fatalf("GetSchema failed: %v", err)
	}

	id, ok := ts.Column("id")
	if !ok || !id.IsPrimaryKey || !id.IsAutoIncrement {
		t.Errorf("id = %+v", id)
	}
	if got := ts.ColumnNames(); len(got) != 4 {
		t.Errorf("columns = %v", got)
	}
}

func TestGetTables(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, age INTEGER)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec(`CREATE VIEW adults AS SELECT * FROM users WHERE age >= 18`); err != nil {
		t.Fatalf("failed to create view: %v", err)
	}

	a, err := NewWithDB(adapters.Config{Type: "sqlite"}, db)
	if err != nil {
		t.Fatalf("NewWithDB failed: %v", err)
	}
	ctx := context.Background()

	tables, err := a.GetTables(ctx, false)
	if err != nil {
		t.Fatalf("GetTables failed: %v", err)
	}
	if len(tables) != 1 || tables[0] != "users" {
		t.Errorf("tables = %v", tables)
	}

	withViews, err := a.GetTables(ctx, true)
	if err != nil {
		t.Fatalf("GetTables with views failed: %v", err)
	}
	if len(withViews) != 2 || withViews[0] != "adults" || withViews[1] != "users" {
		t.Errorf("tables with views = %v", withViews)
	}
}

func TestTextWriteSurface(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	text, outcome, err := adapters.InsertManyAndFetchText(ctx, a, "users",
		"[2]{name,age}:\n  Alice,30\n  Bob,25", adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertManyAndFetchText failed: %v", err)
	}
	if outcome != adapters.MatchMany {
		t.Errorf("outcome = %v, want MatchMany", outcome)
	}
	if rs := decode(t, text); rs.Len() != 2 {
		t.Errorf("rows = %v", rs.Rows)
	}

	text, outcome, err = adapters.UpdateAndFetchText(ctx, a, "users",
		"[1]{age}:\n  26", "[1]{name}:\n  Bob", adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("UpdateAndFetchText failed: %v", err)
	}
	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	if age, _ := decode(t, text).Record(0).Get("age"); age != int64(26) {
		t.Errorf("age = %v, want 26", age)
	}
}

func TestInsertProjection(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	text, outcome, err := a.InsertAndFetch(ctx, "users",
		record.New().Set("name", "Alice").Set("age", 30),
		adapters.WriteOptions{Projection: []string{"id", "status"}})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}
	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}

	rs := decode(t, text)
	if len(rs.Columns) != 2 || rs.Columns[0] != "id" || rs.Columns[1] != "status" {
		t.Errorf("columns = %v", rs.Columns)
	}
	if status, _ := rs.Record(0).Get("status"); status != "active" {
		t.Errorf("status = %v, want default 'active'", status)
	}
}

func TestInsertCallerWhere(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	text, outcome, err := a.InsertAndFetch(ctx, "users",
		record.New().Set("id", 5).Set("name", "Eve"),
		adapters.WriteOptions{Where: record.New().Set("id", 5)})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}
	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	if name, _ := decode(t, text).Record(0).Get("name"); name != "Eve" {
		t.Errorf("name = %v", name)
	}
}

func TestStatsAccounting(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE t (a TEXT, b TEXT)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO t VALUES ('hello', 'world')`); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	a, err := NewWithDB(adapters.Config{Type: "sqlite", StatsEnabled: true}, db)
	if err != nil {
		t.Fatalf("NewWithDB failed: %v", err)
	}

	if _, err := a.Query(context.Background(), "SELECT a, b FROM t"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	sum := a.Stats().Summary()
	if sum.TotalQueries != 1 {
		t.Fatalf("TotalQueries = %d", sum.TotalQueries)
	}
	if sum.CharsSaved <= 0 {
		t.Error("TOON output must be smaller than the JSON baseline")
	}
}

func TestFactoryConnect(t *testing.T) {
	ctx := context.Background()

	a, err := adapters.New(ctx, adapters.Config{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("factory connect failed: %v", err)
	}
	defer a.Close(ctx)

	if a.DatabaseType() != "sqlite" {
		t.Errorf("DatabaseType = %q", a.DatabaseType())
	}
	if err := a.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	tables, err := a.GetTables(ctx, false)
	if err != nil {
		t.Fatalf("GetTables failed: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("tables = %v, want empty", tables)
	}
}

func TestReadOnlyQueryValidation(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	a, err := NewWithDB(adapters.Config{Type: "sqlite", ReadOnly: true}, db)
	if err != nil {
		t.Fatalf("NewWithDB failed: %v", err)
	}

	if _, err := a.Query(context.Background(), "DROP TABLE users"); !errors.Is(err, adapters.ErrSecurity) {
		t.Errorf("err = %v, want ErrSecurity", err)
	}
}
