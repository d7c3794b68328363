package base

import (
	"errors"
	"testing"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/record"
)

func TestInsertSingleRowPostgres(t *testing.T) {
	b := NewBuilder(PostgresDialect())

	row := record.New().Set("name", "Alice").Set("age", 30)
	stmt, err := b.Insert("users", []*record.Record{row}, adapters.ConflictFail, []string{"id"}, true, nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	want := `INSERT INTO "users" ("name", "age") VALUES ($1, $2) RETURNING *`
	if stmt.SQL != want {
		t.Errorf("SQL = %q, want %q", stmt.SQL, want)
	}
	if len(stmt.Args) != 2 || stmt.Args[0] != "Alice" || stmt.Args[1] != 30 {
		t.Errorf("Args = %v", stmt.Args)
	}
}

func TestInsertMultiRowRowMajorParams(t *testing.T) {
	b := NewBuilder(MySQLDialect())

	rows := []*record.Record{
		record.New().Set("a", 1).Set("b", 2),
		record.New().Set("a", 3).Set("b", 4),
	}
	stmt, err := b.Insert("t", rows, "", nil, false, nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	want := "INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?)"
	if stmt.SQL != want {
		t.Errorf("SQL = %q, want %q", stmt.SQL, want)
	}
	// Параметры в порядке строк
	for i, v := range []any{1, 2, 3, 4} {
		if stmt.Args[i] != v {
			t.Errorf("Args[%d] = %v, want %v", i, stmt.Args[i], v)
		}
	}
}

func TestInsertRejectsShapeMismatch(t *testing.T) {
	b := NewBuilder(SQLiteDialect())

	rows := []*record.Record{
		record.New().Set("a", 1).Set("b", 2),
		record.New().Set("b", 2).Set("a", 1), // другой порядок
	}
	_, err := b.Insert("t", rows, "", nil, false, nil)
	if !errors.Is(err, adapters.ErrValue) {
		t.Errorf("err = %v, want ErrValue", err)
	}
}

func TestInsertConflictStrategies(t *testing.T) {
	row := record.New().Set("id", 1).Set("name", "x")

	sqlite, _ := NewBuilder(SQLiteDialect()).Insert("t", []*record.Record{row}, adapters.ConflictIgnore, nil, false, nil)
	if sqlite.SQL != `INSERT OR IGNORE INTO "t" ("id", "name") VALUES (?, ?)` {
		t.Errorf("sqlite ignore SQL = %q", sqlite.SQL)
	}

	mysql, _ := NewBuilder(MySQLDialect()).Insert("t", []*record.Record{row}, adapters.ConflictReplace, nil, false, nil)
	if mysql.SQL != "REPLACE INTO `t` (`id`, `name`) VALUES (?, ?)" {
		t.Errorf("mysql replace SQL = %q", mysql.SQL)
	}

	pg, err := NewBuilder(PostgresDialect()).Insert("t", []*record.Record{row}, adapters.ConflictReplace, []string{"id"}, false, nil)
	if err != nil {
		t.Fatalf("postgres replace failed: %v", err)
	}
	want := `INSERT INTO "t" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`
	if pg.SQL != want {
		t.Errorf("postgres replace SQL = %q, want %q", pg.SQL, want)
	}

	if _, err := NewBuilder(MSSQLDialect()).Insert("t", []*record.Record{row}, adapters.ConflictIgnore, nil, false, nil); err == nil {
		t.Error("mssql must reject conflict strategies other than fail")
	}
}

func TestInsertOutputClausePlacement(t *testing.T) {
	b := NewBuilder(MSSQLDialect())

	row := record.New().Set("name", "x")
	stmt, err := b.Insert("users", []*record.Record{row}, "", nil, true, nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	want := "INSERT INTO [users] ([name]) OUTPUT INSERTED.* VALUES (@p1)"
	if stmt.SQL != want {
		t.Errorf("SQL = %q, want %q", stmt.SQL, want)
	}
}

func TestUpdateParamOrder(t *testing.T) {
	b := NewBuilder(PostgresDialect())

	values := record.New().Set("name", "Bob").Set("age", 31)
	where := record.New().Set("id", 7)

	stmt, err := b.Update("users", values, where, false, nil, false)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	want := `UPDATE "users" SET "name" = $1, "age" = $2 WHERE "id" = $3`
	if stmt.SQL != want {
		t.Errorf("SQL = %q, want %q", stmt.SQL, want)
	}
	// SET параметры перед WHERE параметрами
	if stmt.Args[0] != "Bob" || stmt.Args[1] != 31 || stmt.Args[2] != 7 {
		t.Errorf("Args = %v", stmt.Args)
	}
}

func TestEmptyConditionGuard(t *testing.T) {
	b := NewBuilder(SQLiteDialect())
	values := record.New().Set("x", 1)

	if _, err := b.Update("t", values, nil, false, nil, false); !errors.Is(err, adapters.ErrFullTable) {
		t.Errorf("update: err = %v, want ErrFullTable", err)
	}
	if _, err := b.Delete("t", record.New(), false); !errors.Is(err, adapters.ErrFullTable) {
		t.Errorf("delete: err = %v, want ErrFullTable", err)
	}

	// Явное разрешение снимает защиту
	stmt, err := b.Delete("t", nil, true)
	if err != nil {
		t.Fatalf("Delete with AllowFullTable failed: %v", err)
	}
	if stmt.SQL != `DELETE FROM "t"` {
		t.Errorf("SQL = %q", stmt.SQL)
	}
}

func TestWhereNullValues(t *testing.T) {
	b := NewBuilder(PostgresDialect())

	where := record.New().Set("a", 1).Set("b", nil).Set("c", "x")
	stmt, err := b.Delete("t", where, false)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	want := `DELETE FROM "t" WHERE "a" = $1 AND "b" IS NULL AND "c" = $2`
	if stmt.SQL != want {
		t.Errorf("SQL = %q, want %q", stmt.SQL, want)
	}
	if len(stmt.Args) != 2 {
		t.Errorf("Args = %v, NULL must not add parameters", stmt.Args)
	}
}

func TestSelectMatchingGroups(t *testing.T) {
	b := NewBuilder(MySQLDialect())

	rows := []*record.Record{
		record.New().Set("a", 1).Set("b", nil),
		record.New().Set("a", 2).Set("b", "x"),
	}
	stmt, err := b.SelectMatching("t", rows, nil, 0)
	if err != nil {
		t.Fatalf("SelectMatching failed: %v", err)
	}

	want := "SELECT * FROM `t` WHERE (`a` = ? AND `b` IS NULL) OR (`a` = ? AND `b` = ?)"
	if stmt.SQL != want {
		t.Errorf("SQL = %q, want %q", stmt.SQL, want)
	}
	if len(stmt.Args) != 3 {
		t.Errorf("Args = %v", stmt.Args)
	}
}

func TestIdentifierInjectionRejected(t *testing.T) {
	b := NewBuilder(PostgresDialect())
	row := record.New().Set("name", "x")

	if _, err := b.Insert(`users"; DROP TABLE users; --`, []*record.Record{row}, "", nil, false, nil); !errors.Is(err, adapters.ErrSecurity) {
		t.Errorf("table injection: err = %v, want ErrSecurity", err)
	}

	bad := record.New().Set(`name" = 'x' --`, 1)
	if _, err := b.Insert("users", []*record.Record{bad}, "", nil, false, nil); !errors.Is(err, adapters.ErrSecurity) {
		t.Errorf("column injection: err = %v, want ErrSecurity", err)
	}
}

func TestQualifiedTableQuoting(t *testing.T) {
	b := NewBuilder(MSSQLDialect())

	stmt, err := b.SelectWhere("dbo.Orders", record.New().Set("id", 1), nil, 0)
	if err != nil {
		t.Fatalf("SelectWhere failed: %v", err)
	}
	if stmt.SQL != "SELECT * FROM [dbo].[Orders] WHERE [id] = @p1" {
		t.Errorf("SQL = %q", stmt.SQL)
	}
}

func TestSelectKeyRange(t *testing.T) {
	b := NewBuilder(MySQLDialect())

	stmt, err := b.SelectKeyRange("t", "id", 5, 7, nil)
	if err != nil {
		t.Fatalf("SelectKeyRange failed: %v", err)
	}
	if stmt.SQL != "SELECT * FROM `t` WHERE `id` >= ? AND `id` <= ? ORDER BY `id`" {
		t.Errorf("SQL = %q", stmt.SQL)
	}
	if stmt.Args[0] != int64(5) || stmt.Args[1] != int64(7) {
		t.Errorf("Args = %v", stmt.Args)
	}
}

func TestReturningProjection(t *testing.T) {
	row := record.New().Set("name", "x")

	pg, err := NewBuilder(PostgresDialect()).Insert("users", []*record.Record{row}, "", nil, true, []string{"id", "name"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if pg.SQL != `INSERT INTO "users" ("name") VALUES ($1) RETURNING "id", "name"` {
		t.Errorf("postgres SQL = %q", pg.SQL)
	}

	ms, err := NewBuilder(MSSQLDialect()).Insert("users", []*record.Record{row}, "", nil, true, []string{"id"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if ms.SQL != "INSERT INTO [users] ([name]) OUTPUT INSERTED.[id] VALUES (@p1)" {
		t.Errorf("mssql SQL = %q", ms.SQL)
	}
}

func TestSelectProjectionAndLimit(t *testing.T) {
	where := record.New().Set("id", 1)

	my, err := NewBuilder(MySQLDialect()).SelectWhere("t", where, []string{"id", "name"}, 10)
	if err != nil {
		t.Fatalf("SelectWhere failed: %v", err)
	}
	if my.SQL != "SELECT `id`, `name` FROM `t` WHERE `id` = ? LIMIT 10" {
		t.Errorf("mysql SQL = %q", my.SQL)
	}

	// MS SQL выражает ограничение префиксом TOP
	ms, err := NewBuilder(MSSQLDialect()).SelectWhere("t", where, nil, 3)
	if err != nil {
		t.Fatalf("SelectWhere failed: %v", err)
	}
	if ms.SQL != "SELECT TOP (3) * FROM [t] WHERE [id] = @p1" {
		t.Errorf("mssql SQL = %q", ms.SQL)
	}
}

func TestProjectionInjectionRejected(t *testing.T) {
	b := NewBuilder(PostgresDialect())

	_, err := b.SelectWhere("t", record.New().Set("id", 1), []string{`name"; --`}, 0)
	if !errors.Is(err, adapters.ErrSecurity) {
		t.Errorf("err = %v, want ErrSecurity", err)
	}
}
