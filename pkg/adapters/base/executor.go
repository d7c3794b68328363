package base

import (
	"context"
	"fmt"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/coerce"
	"github.com/toonlabs/toondb/pkg/core/record"
)

// Executor выполняет запросы через Session и приводит результаты
// выборок к каноническим значениям.
type Executor struct {
	session adapters.Session
}

// NewExecutor создает исполнитель поверх сессии
func NewExecutor(s adapters.Session) *Executor {
	return &Executor{session: s}
}

// Fetch выполняет выборку и возвращает канонический RowSet.
// Порядок колонок результата сохраняется как есть.
func (e *Executor) Fetch(ctx context.Context, sql string, args []any) (*record.RowSet, error) {
	cols, rows, err := e.session.Fetch(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}

	names := make([]string, len(cols))
	types := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
		types[i] = col.DatabaseType
	}

	rs := record.NewRowSet(names...)
	for _, row := range rows {
		if err := rs.Append(row...); err != nil {
			return nil, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
		}
	}

	coerce.CleanRowSet(rs, types)
	return rs, nil
}

// Execute выполняет изменяющий запрос
func (e *Executor) Execute(ctx context.Context, sql string, args []any) (adapters.ExecResult, error) {
	res, err := e.session.Execute(ctx, sql, args)
	if err != nil {
		return adapters.ExecResult{}, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	return res, nil
}
