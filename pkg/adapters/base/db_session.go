package base

import (
	"context"
	"database/sql"

	"github.com/toonlabs/toondb/pkg/adapters"
)

// DBSession - реализация adapters.Session поверх database/sql.
// Общая для всех бэкендов на стандартном пуле (MySQL, SQLite, MS SQL);
// PostgreSQL работает через нативный pgx и сюда не заходит.
type DBSession struct {
	db *sql.DB
}

// NewDBSession оборачивает готовый пул database/sql
func NewDBSession(db *sql.DB) *DBSession {
	return &DBSession{db: db}
}

// Fetch выполняет выборку. Нативные типы колонок берутся из
// ColumnTypes драйвера.
func (s *DBSession) Fetch(ctx context.Context, query string, args []any) ([]adapters.Column, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}

	cols := make([]adapters.Column, len(types))
	for i, ct := range types {
		cols[i] = adapters.Column{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
		}
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return cols, out, nil
}

// Execute выполняет изменяющий запрос
func (s *DBSession) Execute(ctx context.Context, query string, args []any) (adapters.ExecResult, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return adapters.ExecResult{}, err
	}

	out := adapters.ExecResult{}
	if affected, err := res.RowsAffected(); err == nil {
		out.Affected = affected
	}
	// Не все драйверы сообщают идентификатор вставки (mssql - нет)
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		out.LastInsertID = id
		out.HasLastInsertID = true
	}

	return out, nil
}

// Close закрывает пул
func (s *DBSession) Close(ctx context.Context) error {
	return s.db.Close()
}
