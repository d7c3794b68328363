package base

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/record"
	"github.com/toonlabs/toondb/pkg/core/toon"
	"github.com/toonlabs/toondb/pkg/security"
	"github.com/toonlabs/toondb/pkg/stats"
)

// SQLAdapter - общая реализация adapters.Adapter поверх Session.
// Бэкенды встраивают его и добавляют только Connect: открытие
// подключения и выбор диалекта.
type SQLAdapter struct {
	cfg     adapters.Config
	dialect *Dialect
	session adapters.Session
	owned   bool

	catalog   *Catalog
	exec      *Executor
	coord     *Coordinator
	codec     toon.Codec
	validator *security.QueryValidator
	stats     *stats.SessionStats
	sink      io.Closer
}

// NewSQLAdapter собирает общий слой поверх готовой сессии.
// owned=false для заимствованных подключений: Close их не закрывает.
func NewSQLAdapter(cfg adapters.Config, d *Dialect, session adapters.Session, owned bool) (*SQLAdapter, error) {
	var sink *stats.FileSink
	writers := []io.Writer{}
	if cfg.StatsLogFile != "" {
		var err error
		if sink, err = stats.NewFileSink(cfg.StatsLogFile); err != nil {
			return nil, err
		}
		writers = append(writers, sink)
	}
	if cfg.Verbose {
		writers = append(writers, os.Stdout)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = nil
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	catalog := NewCatalog(session, d, cfg.Schema)
	exec := NewExecutor(session)

	a := &SQLAdapter{
		cfg:       cfg,
		dialect:   d,
		session:   session,
		owned:     owned,
		catalog:   catalog,
		exec:      exec,
		coord:     NewCoordinator(d, catalog, exec),
		codec:     toon.NewCodec(),
		validator: security.NewQueryValidator(cfg.ReadOnly),
		stats:     stats.NewSessionStats(cfg.StatsEnabled || cfg.Verbose || cfg.StatsLogFile != "", out),
	}
	if sink != nil {
		a.sink = sink
	}
	return a, nil
}

// Close закрывает подключение, если оно принадлежит адаптеру
func (a *SQLAdapter) Close(ctx context.Context) error {
	if a.sink != nil {
		a.sink.Close()
	}
	if !a.owned {
		return nil
	}
	return a.session.Close(ctx)
}

// Ping проверяет доступность БД
func (a *SQLAdapter) Ping(ctx context.Context) error {
	if _, _, err := a.session.Fetch(ctx, "SELECT 1", nil); err != nil {
		return fmt.Errorf("%w: %v", adapters.ErrConnection, err)
	}
	return nil
}

// Query выполняет выборку и возвращает результат в табличной нотации
func (a *SQLAdapter) Query(ctx context.Context, query string, args ...any) (string, error) {
	return a.run(ctx, "query", query, args)
}

// Execute - синоним Query
func (a *SQLAdapter) Execute(ctx context.Context, query string, args ...any) (string, error) {
	return a.run(ctx, "execute", query, args)
}

func (a *SQLAdapter) run(ctx context.Context, queryType, query string, args []any) (string, error) {
	if err := a.validator.Validate(query); err != nil {
		return "", fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}

	rs, err := a.exec.Fetch(ctx, query, args)
	if err != nil {
		return "", err
	}

	return a.encode(queryType, rs)
}

// InsertAndFetch вставляет одну строку и возвращает ее состояние после вставки
func (a *SQLAdapter) InsertAndFetch(ctx context.Context, table string, row *record.Record, opts adapters.WriteOptions) (string, adapters.Outcome, error) {
	rs, outcome, err := a.coord.InsertAndFetch(ctx, table, row, opts)
	if err != nil {
		return "", outcome, err
	}
	text, err := a.encode("insert", rs)
	return text, outcome, err
}

// InsertManyAndFetch вставляет несколько строк и возвращает их состояние
func (a *SQLAdapter) InsertManyAndFetch(ctx context.Context, table string, rows []*record.Record, opts adapters.WriteOptions) (string, adapters.Outcome, error) {
	rs, outcome, err := a.coord.InsertManyAndFetch(ctx, table, rows, opts)
	if err != nil {
		return "", outcome, err
	}
	text, err := a.encode("insert_many", rs)
	return text, outcome, err
}

// UpdateAndFetch обновляет строки и возвращает их состояние после обновления
func (a *SQLAdapter) UpdateAndFetch(ctx context.Context, table string, values, where *record.Record, opts adapters.WriteOptions) (string, adapters.Outcome, error) {
	rs, outcome, err := a.coord.UpdateAndFetch(ctx, table, values, where, opts)
	if err != nil {
		return "", outcome, err
	}
	text, err := a.encode("update", rs)
	return text, outcome, err
}

// Delete удаляет строки по условию и возвращает число удаленных
func (a *SQLAdapter) Delete(ctx context.Context, table string, where *record.Record, opts adapters.WriteOptions) (int64, error) {
	return a.coord.Delete(ctx, table, where, opts)
}

// GetSchema возвращает метаданные таблицы
func (a *SQLAdapter) GetSchema(ctx context.Context, table string) (*adapters.TableSchema, error) {
	return a.catalog.Get(ctx, table)
}

// GetAllSchemas возвращает метаданные всех таблиц базы
func (a *SQLAdapter) GetAllSchemas(ctx context.Context) (map[string]*adapters.TableSchema, error) {
	tables, err := a.catalog.Tables(ctx, false)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]*adapters.TableSchema, len(tables))
	for _, table := range tables {
		ts, err := a.catalog.Get(ctx, table)
		if err != nil {
			return nil, err
		}
		schemas[table] = ts
	}
	return schemas, nil
}

// GetTables возвращает упорядоченный список таблиц базы.
// includeViews добавляет представления.
func (a *SQLAdapter) GetTables(ctx context.Context, includeViews bool) ([]string, error) {
	return a.catalog.Tables(ctx, includeViews)
}

// Stats возвращает учет экономии токенов этой сессии
func (a *SQLAdapter) Stats() *stats.SessionStats {
	return a.stats
}

// DatabaseType возвращает тип СУБД
func (a *SQLAdapter) DatabaseType() string {
	return a.dialect.Name
}

// Catalog открывает доступ к кэшу схем (сброс после DDL и т.п.)
func (a *SQLAdapter) Catalog() *Catalog {
	return a.catalog
}

// encode сериализует результат в нотацию и учитывает экономию
// против JSON представления того же результата
func (a *SQLAdapter) encode(queryType string, rs *record.RowSet) (string, error) {
	text, err := a.codec.Encode(rs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", adapters.ErrValue, err)
	}

	if a.stats.Enabled() {
		a.stats.Record(queryType, jsonBaseline(rs), text)
	}

	return text, nil
}

// jsonBaseline строит JSON представление результата для сравнения размеров
func jsonBaseline(rs *record.RowSet) string {
	arr := make([]map[string]any, rs.Len())
	for i, row := range rs.Rows {
		obj := make(map[string]any, len(rs.Columns))
		for j, col := range rs.Columns {
			obj[col] = row[j]
		}
		arr[i] = obj
	}

	data, err := json.Marshal(arr)
	if err != nil {
		return ""
	}
	return string(data)
}
