package base

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/record"
)

// fakeSession - скриптованная сессия: очереди заготовленных ответов
// плюс журнал выполненных запросов
type fetchResp struct {
	cols []adapters.Column
	rows [][]any
	err  error
}

type execResp struct {
	res adapters.ExecResult
	err error
}

type fakeSession struct {
	fetchQueue []fetchResp
	execQueue  []execResp
	fetchSQL   []string
	execSQL    []string
}

func (f *fakeSession) Fetch(ctx context.Context, sql string, args []any) ([]adapters.Column, [][]any, error) {
	f.fetchSQL = append(f.fetchSQL, sql)
	if len(f.fetchQueue) == 0 {
		return nil, nil, fmt.Errorf("unexpected fetch: %s", sql)
	}
	r := f.fetchQueue[0]
	f.fetchQueue = f.fetchQueue[1:]
	return r.cols, r.rows, r.err
}

func (f *fakeSession) Execute(ctx context.Context, sql string, args []any) (adapters.ExecResult, error) {
	f.execSQL = append(f.execSQL, sql)
	if len(f.execQueue) == 0 {
		return adapters.ExecResult{}, fmt.Errorf("unexpected execute: %s", sql)
	}
	r := f.execQueue[0]
	f.execQueue = f.execQueue[1:]
	return r.res, r.err
}

func (f *fakeSession) Close(ctx context.Context) error {
	return nil
}

// Ответ интроспекции MySQL для users(id auto-increment PK, name)
func mysqlUsersDescribe() fetchResp {
	return fetchResp{
		cols: []adapters.Column{
			{Name: "column_name"}, {Name: "column_type"}, {Name: "is_nullable"},
			{Name: "column_key"}, {Name: "extra"}, {Name: "column_default"},
		},
		rows: [][]any{
			{"id", "int", "NO", "PRI", "auto_increment", nil},
			{"name", "varchar(100)", "YES", "", "", nil},
		},
	}
}

// Ответы интроспекции PostgreSQL для users(id identity PK, name)
func postgresUsersDescribe() []fetchResp {
	return []fetchResp{
		{
			cols: []adapters.Column{
				{Name: "column_name"}, {Name: "data_type"}, {Name: "is_nullable"},
				{Name: "column_default"}, {Name: "is_identity"},
			},
			rows: [][]any{
				{"id", "integer", "NO", nil, "YES"},
				{"name", "character varying", "YES", nil, "NO"},
			},
		},
		{
			cols: []adapters.Column{{Name: "column_name"}},
			rows: [][]any{{"id"}},
		},
	}
}

func newCoordinator(d *Dialect, s adapters.Session) *Coordinator {
	return NewCoordinator(d, NewCatalog(s, d, "public"), NewExecutor(s))
}

func usersCols() []adapters.Column {
	return []adapters.Column{{Name: "id", DatabaseType: "int"}, {Name: "name", DatabaseType: "varchar"}}
}

func TestInsertAndFetchReturningPath(t *testing.T) {
	sess := &fakeSession{}
	sess.fetchQueue = append(sess.fetchQueue, postgresUsersDescribe()...)
	sess.fetchQueue = append(sess.fetchQueue, fetchResp{
		cols: usersCols(),
		rows: [][]any{{int64(1), "Alice"}},
	})

	c := newCoordinator(PostgresDialect(), sess)
	rs, outcome, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "Alice"), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	if rs.Len() != 1 || rs.Rows[0][0] != int64(1) {
		t.Errorf("rows = %v", rs.Rows)
	}

	insertSQL := sess.fetchSQL[len(sess.fetchSQL)-1]
	if !strings.Contains(insertSQL, "RETURNING *") {
		t.Errorf("insert must carry RETURNING: %q", insertSQL)
	}
	if len(sess.execSQL) != 0 {
		t.Errorf("returning path must not use Execute: %v", sess.execSQL)
	}
}

func TestInsertAndFetchLastInsertIDPath(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{cols: usersCols(), rows: [][]any{{int64(42), "Bob"}}},
		},
		execQueue: []execResp{
			{res: adapters.ExecResult{Affected: 1, LastInsertID: 42, HasLastInsertID: true}},
		},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rs, outcome, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "Bob"), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	if rs.Rows[0][0] != int64(42) {
		t.Errorf("rows = %v", rs.Rows)
	}

	selectSQL := sess.fetchSQL[len(sess.fetchSQL)-1]
	if !strings.Contains(selectSQL, ">=") || !strings.Contains(selectSQL, "`id`") {
		t.Errorf("recovery must select by key range: %q", selectSQL)
	}
}

func TestInsertManyKeyRangeRecovery(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{cols: usersCols(), rows: [][]any{{int64(10), "a"}, {int64(11), "b"}, {int64(12), "c"}}},
		},
		execQueue: []execResp{
			{res: adapters.ExecResult{Affected: 3, LastInsertID: 10, HasLastInsertID: true}},
		},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rows := []*record.Record{
		record.New().Set("name", "a"),
		record.New().Set("name", "b"),
		record.New().Set("name", "c"),
	}
	rs, outcome, err := c.InsertManyAndFetch(context.Background(), "users", rows, adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertManyAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchMany {
		t.Errorf("outcome = %v, want MatchMany", outcome)
	}
	if rs.Len() != 3 {
		t.Errorf("rows = %v", rs.Rows)
	}
}

func TestInsertKeyRangeRequiresDialectSupport(t *testing.T) {
	// Диалект без семантики LAST_INSERT_ID не доверяет идентификатору
	// из драйвера: восстановление идет по совпадению значений
	d := MySQLDialect()
	d.UsesLastInsertID = false

	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{cols: usersCols(), rows: [][]any{{int64(5), "Zed"}}},
		},
		execQueue: []execResp{
			{res: adapters.ExecResult{Affected: 1, LastInsertID: 5, HasLastInsertID: true}},
		},
	}

	c := newCoordinator(d, sess)
	_, outcome, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "Zed"), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	selectSQL := sess.fetchSQL[len(sess.fetchSQL)-1]
	if strings.Contains(selectSQL, ">=") {
		t.Errorf("key-range recovery must be gated by the dialect: %q", selectSQL)
	}
	if !strings.Contains(selectSQL, "`name` = ?") {
		t.Errorf("recovery must match by values: %q", selectSQL)
	}
}

func TestInsertReadBackFailureIsDistinct(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{err: fmt.Errorf("connection lost")},
		},
		execQueue: []execResp{
			{res: adapters.ExecResult{Affected: 1, LastInsertID: 7, HasLastInsertID: true}},
		},
	}

	c := newCoordinator(MySQLDialect(), sess)
	_, _, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "x"), adapters.WriteOptions{})

	if !errors.Is(err, adapters.ErrReadBack) {
		t.Errorf("err = %v, want ErrReadBack", err)
	}
}

func TestInsertFailureIsNotReadBack(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{mysqlUsersDescribe()},
		execQueue:  []execResp{{err: fmt.Errorf("duplicate entry")}},
	}

	c := newCoordinator(MySQLDialect(), sess)
	_, _, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "x"), adapters.WriteOptions{})

	if err == nil || errors.Is(err, adapters.ErrReadBack) {
		t.Errorf("insert failure must not be ErrReadBack: %v", err)
	}
	if !errors.Is(err, adapters.ErrQuery) {
		t.Errorf("err = %v, want ErrQuery", err)
	}
}

func TestInsertValueMatchAmbiguous(t *testing.T) {
	// Таблица без автоинкрементного ключа: восстановление по значениям.
	// Две совпавшие строки на одну вставленную - неоднозначность.
	describe := fetchResp{
		cols: []adapters.Column{
			{Name: "column_name"}, {Name: "column_type"}, {Name: "is_nullable"},
			{Name: "column_key"}, {Name: "extra"}, {Name: "column_default"},
		},
		rows: [][]any{
			{"name", "varchar(100)", "YES", "", "", nil},
		},
	}
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			describe,
			{cols: []adapters.Column{{Name: "name"}}, rows: [][]any{{"x"}, {"x"}}},
		},
		execQueue: []execResp{{res: adapters.ExecResult{Affected: 1}}},
	}

	c := newCoordinator(MySQLDialect(), sess)
	_, outcome, err := c.InsertAndFetch(context.Background(), "logs",
		record.New().Set("name", "x"), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchAmbiguous {
		t.Errorf("outcome = %v, want MatchAmbiguous", outcome)
	}

	matchSQL := sess.fetchSQL[len(sess.fetchSQL)-1]
	if !strings.Contains(matchSQL, "WHERE (`name` = ?)") {
		t.Errorf("match select = %q", matchSQL)
	}
}

func TestInsertIgnoreSuppressedRow(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{mysqlUsersDescribe()},
		execQueue:  []execResp{{res: adapters.ExecResult{Affected: 0}}},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rs, outcome, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "dup"), adapters.WriteOptions{Conflict: adapters.ConflictIgnore})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchNone {
		t.Errorf("outcome = %v, want MatchNone", outcome)
	}
	if rs.Len() != 0 {
		t.Errorf("rows = %v, want empty", rs.Rows)
	}
	// Имена колонок сохраняются даже в пустом результате
	if len(rs.Columns) != 2 {
		t.Errorf("columns = %v", rs.Columns)
	}
}

func TestUpdateAndFetchReselect(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{cols: usersCols(), rows: [][]any{{int64(7), "Carol"}}},
		},
		execQueue: []execResp{{res: adapters.ExecResult{Affected: 1}}},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rs, outcome, err := c.UpdateAndFetch(context.Background(), "users",
		record.New().Set("name", "Carol"),
		record.New().Set("id", 7).Set("name", "Bob"),
		adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("UpdateAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	if rs.Rows[0][1] != "Carol" {
		t.Errorf("rows = %v", rs.Rows)
	}

	// Условие повторной выборки использует обновленное значение name
	reselect := sess.fetchSQL[len(sess.fetchSQL)-1]
	if !strings.Contains(reselect, "`id` = ?") || !strings.Contains(reselect, "`name` = ?") {
		t.Errorf("re-select = %q", reselect)
	}
}

func TestUpdateNoMatch(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{mysqlUsersDescribe()},
		execQueue:  []execResp{{res: adapters.ExecResult{Affected: 0}}},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rs, outcome, err := c.UpdateAndFetch(context.Background(), "users",
		record.New().Set("name", "x"),
		record.New().Set("id", 999),
		adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("UpdateAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchNone {
		t.Errorf("outcome = %v, want MatchNone", outcome)
	}
	if rs.Len() != 0 {
		t.Errorf("rows = %v", rs.Rows)
	}
	// Повторная выборка не выполняется, если ничего не изменено
	if len(sess.fetchQueue) != 0 {
		t.Error("unused scripted responses remain")
	}
}

func TestUpdateEmptyConditionRejected(t *testing.T) {
	sess := &fakeSession{fetchQueue: []fetchResp{mysqlUsersDescribe()}}

	c := newCoordinator(MySQLDialect(), sess)
	_, _, err := c.UpdateAndFetch(context.Background(), "users",
		record.New().Set("name", "x"), nil, adapters.WriteOptions{})

	if !errors.Is(err, adapters.ErrFullTable) {
		t.Errorf("err = %v, want ErrFullTable", err)
	}
	if len(sess.execSQL) != 0 {
		t.Error("guarded update must not reach the database")
	}
}

func TestDeleteReturnsAffected(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{mysqlUsersDescribe()},
		execQueue:  []execResp{{res: adapters.ExecResult{Affected: 3}}},
	}

	c := newCoordinator(MySQLDialect(), sess)
	n, err := c.Delete(context.Background(), "users",
		record.New().Set("name", "old"), adapters.WriteOptions{})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 3 {
		t.Errorf("affected = %d, want 3", n)
	}
}

func TestInsertCallerWhereTakesPriority(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{cols: usersCols(), rows: [][]any{{int64(5), "Eve"}}},
		},
		execQueue: []execResp{
			{res: adapters.ExecResult{Affected: 1, LastInsertID: 5, HasLastInsertID: true}},
		},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rs, outcome, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "Eve"),
		adapters.WriteOptions{Where: record.New().Set("id", 5)})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if outcome != adapters.MatchOne {
		t.Errorf("outcome = %v, want MatchOne", outcome)
	}
	if rs.Rows[0][1] != "Eve" {
		t.Errorf("rows = %v", rs.Rows)
	}

	// Явное условие выигрывает у восстановления по LAST_INSERT_ID
	selectSQL := sess.fetchSQL[len(sess.fetchSQL)-1]
	if !strings.Contains(selectSQL, "WHERE `id` = ?") || strings.Contains(selectSQL, ">=") {
		t.Errorf("follow-up select = %q", selectSQL)
	}
}

func TestInsertProjectionNarrowsRecovery(t *testing.T) {
	sess := &fakeSession{
		fetchQueue: []fetchResp{
			mysqlUsersDescribe(),
			{cols: []adapters.Column{{Name: "id", DatabaseType: "int"}}, rows: [][]any{{int64(9)}}},
		},
		execQueue: []execResp{
			{res: adapters.ExecResult{Affected: 1, LastInsertID: 9, HasLastInsertID: true}},
		},
	}

	c := newCoordinator(MySQLDialect(), sess)
	rs, _, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "x"),
		adapters.WriteOptions{Projection: []string{"id"}})
	if err != nil {
		t.Fatalf("InsertAndFetch failed: %v", err)
	}

	if len(rs.Columns) != 1 || rs.Columns[0] != "id" {
		t.Errorf("columns = %v", rs.Columns)
	}
	selectSQL := sess.fetchSQL[len(sess.fetchSQL)-1]
	if !strings.Contains(selectSQL, "SELECT `id` FROM") {
		t.Errorf("recovery select = %q", selectSQL)
	}
}

func TestInsertUnknownProjectionColumnRejected(t *testing.T) {
	sess := &fakeSession{fetchQueue: []fetchResp{mysqlUsersDescribe()}}

	c := newCoordinator(MySQLDialect(), sess)
	_, _, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("name", "x"),
		adapters.WriteOptions{Projection: []string{"missing"}})

	if !errors.Is(err, adapters.ErrSchema) {
		t.Errorf("err = %v, want ErrSchema", err)
	}
	if len(sess.execSQL) != 0 {
		t.Error("invalid projection must be rejected before the write")
	}
}

func TestInsertUnknownColumnRejected(t *testing.T) {
	sess := &fakeSession{fetchQueue: []fetchResp{mysqlUsersDescribe()}}

	c := newCoordinator(MySQLDialect(), sess)
	_, _, err := c.InsertAndFetch(context.Background(), "users",
		record.New().Set("nmae", "typo"), adapters.WriteOptions{})

	if !errors.Is(err, adapters.ErrSchema) {
		t.Errorf("err = %v, want ErrSchema", err)
	}
}
