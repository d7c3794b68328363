package base

import (
	"context"
	"fmt"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/coerce"
	"github.com/toonlabs/toondb/pkg/core/record"
)

// Coordinator выполняет циклы запись-чтение: применяет запись и
// восстанавливает затронутые строки со значениями, сгенерированными
// базой (автоинкременты, значения по умолчанию, триггеры).
//
// Путь восстановления выбирается по возможностям диалекта:
//  1. RETURNING / OUTPUT - строки приходят из самого запроса
//  2. LAST_INSERT_ID + автоинкрементный ключ - выборка по диапазону
//  3. совпадение по значениям - резервный путь для всего остального
//
// Ошибка после успешно примененной записи оборачивается в ErrReadBack:
// данные в базе изменены, неудача относится только к их возврату.
type Coordinator struct {
	dialect *Dialect
	builder *Builder
	catalog *Catalog
	exec    *Executor
}

// NewCoordinator создает координатор циклов запись-чтение
func NewCoordinator(d *Dialect, catalog *Catalog, exec *Executor) *Coordinator {
	return &Coordinator{
		dialect: d,
		builder: NewBuilder(d),
		catalog: catalog,
		exec:    exec,
	}
}

// InsertAndFetch вставляет одну строку и возвращает ее состояние после вставки
func (c *Coordinator) InsertAndFetch(ctx context.Context, table string, row *record.Record, opts adapters.WriteOptions) (*record.RowSet, adapters.Outcome, error) {
	if row == nil || row.Len() == 0 {
		return nil, adapters.MatchNone, fmt.Errorf("%w: empty row", adapters.ErrValue)
	}
	return c.InsertManyAndFetch(ctx, table, []*record.Record{row}, opts)
}

// InsertManyAndFetch вставляет несколько строк одним запросом и
// возвращает их состояние после вставки
func (c *Coordinator) InsertManyAndFetch(ctx context.Context, table string, rows []*record.Record, opts adapters.WriteOptions) (*record.RowSet, adapters.Outcome, error) {
	if len(rows) == 0 {
		return nil, adapters.MatchNone, fmt.Errorf("%w: no rows to insert", adapters.ErrValue)
	}

	touched := rows[0].Names()
	touched = append(touched, opts.Projection...)
	if opts.Where != nil {
		touched = append(touched, opts.Where.Names()...)
	}
	ts, err := c.catalog.ValidateColumns(ctx, table, touched)
	if err != nil {
		return nil, adapters.MatchNone, err
	}

	native := make([]*record.Record, len(rows))
	for i, row := range rows {
		if native[i], err = c.toNativeRecord(row, ts); err != nil {
			return nil, adapters.MatchNone, err
		}
	}

	withReturning := c.dialect.Returning != ReturningNone
	stmt, err := c.builder.Insert(table, native, opts.Conflict, ts.PrimaryKey(), withReturning, opts.Projection)
	if err != nil {
		return nil, adapters.MatchNone, err
	}

	// Строки приходят прямо из запроса записи
	if withReturning {
		rs, err := c.exec.Fetch(ctx, stmt.SQL, stmt.Args)
		if err != nil {
			return nil, adapters.MatchNone, err
		}
		return rs, insertOutcome(rs.Len(), len(rows)), nil
	}

	res, err := c.exec.Execute(ctx, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, adapters.MatchNone, err
	}
	if res.Affected == 0 {
		return emptyRowSet(ts, opts.Projection), adapters.MatchNone, nil
	}

	// Явное условие вызывающей стороны имеет приоритет над
	// восстановлением по идентификатору
	if opts.Where != nil && opts.Where.Len() > 0 {
		nativeWhere, err := c.toNativeRecord(opts.Where, ts)
		if err != nil {
			return nil, adapters.MatchNone, fmt.Errorf("%w: rows inserted but follow-up condition is invalid: %v", adapters.ErrReadBack, err)
		}
		stmt, err := c.builder.SelectWhere(table, nativeWhere, opts.Projection, opts.Limit)
		if err != nil {
			return nil, adapters.MatchNone, fmt.Errorf("%w: rows inserted but follow-up select could not be built: %v", adapters.ErrReadBack, err)
		}
		rs, err := c.exec.Fetch(ctx, stmt.SQL, stmt.Args)
		if err != nil {
			return nil, adapters.MatchNone, fmt.Errorf("%w: rows inserted but follow-up select failed: %v", adapters.ErrReadBack, err)
		}
		return rs, matchOutcome(rs.Len(), len(rows)), nil
	}

	// Выборка по диапазону автоинкрементного ключа.
	// Путь открыт только для диалектов с семантикой LAST_INSERT_ID.
	// Диапазон непрерывен только для обычной вставки: при ignore
	// пропуски возможны, поэтому такой путь не используется.
	if autoCol, ok := ts.AutoIncrementColumn(); ok &&
		c.dialect.UsesLastInsertID &&
		res.HasLastInsertID && res.LastInsertID > 0 &&
		(opts.Conflict == "" || opts.Conflict == adapters.ConflictFail) {
		if _, provided := rows[0].Get(autoCol); !provided {
			stmt, err := c.builder.SelectKeyRange(table, autoCol, res.LastInsertID, res.LastInsertID+res.Affected-1, opts.Projection)
			if err != nil {
				return nil, adapters.MatchNone, err
			}
			rs, err := c.exec.Fetch(ctx, stmt.SQL, stmt.Args)
			if err != nil {
				return nil, adapters.MatchNone, fmt.Errorf("%w: rows inserted but key-range select failed: %v", adapters.ErrReadBack, err)
			}
			return rs, insertOutcome(rs.Len(), len(rows)), nil
		}
	}

	// Резервный путь: совпадение по значениям
	stmt, err = c.builder.SelectMatching(table, native, opts.Projection, opts.Limit)
	if err != nil {
		return nil, adapters.MatchNone, fmt.Errorf("%w: rows inserted but match select could not be built: %v", adapters.ErrReadBack, err)
	}
	rs, err := c.exec.Fetch(ctx, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, adapters.MatchNone, fmt.Errorf("%w: rows inserted but match select failed: %v", adapters.ErrReadBack, err)
	}
	return rs, matchOutcome(rs.Len(), len(rows)), nil
}

// UpdateAndFetch обновляет строки по условию и возвращает их состояние
// после обновления
func (c *Coordinator) UpdateAndFetch(ctx context.Context, table string, values, where *record.Record, opts adapters.WriteOptions) (*record.RowSet, adapters.Outcome, error) {
	if values == nil || values.Len() == 0 {
		return nil, adapters.MatchNone, fmt.Errorf("%w: no values to update", adapters.ErrValue)
	}

	touched := values.Names()
	touched = append(touched, opts.Projection...)
	if where != nil {
		touched = append(touched, where.Names()...)
	}
	ts, err := c.catalog.ValidateColumns(ctx, table, touched)
	if err != nil {
		return nil, adapters.MatchNone, err
	}

	nativeValues, err := c.toNativeRecord(values, ts)
	if err != nil {
		return nil, adapters.MatchNone, err
	}
	var nativeWhere *record.Record
	if where != nil {
		if nativeWhere, err = c.toNativeRecord(where, ts); err != nil {
			return nil, adapters.MatchNone, err
		}
	}

	withReturning := c.dialect.Returning != ReturningNone
	stmt, err := c.builder.Update(table, nativeValues, nativeWhere, withReturning, opts.Projection, opts.AllowFullTable)
	if err != nil {
		return nil, adapters.MatchNone, err
	}

	if withReturning {
		rs, err := c.exec.Fetch(ctx, stmt.SQL, stmt.Args)
		if err != nil {
			return nil, adapters.MatchNone, err
		}
		return rs, insertOutcome(rs.Len(), rs.Len()), nil
	}

	res, err := c.exec.Execute(ctx, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, adapters.MatchNone, err
	}
	if res.Affected == 0 {
		return emptyRowSet(ts, opts.Projection), adapters.MatchNone, nil
	}

	// Повторная выборка по исходному условию. Поля условия, задетые
	// самим обновлением, переписываются новыми значениями, иначе
	// выборка гарантированно пуста.
	merged := mergeCondition(nativeValues, nativeWhere)
	stmt, err = c.builder.SelectWhere(table, merged, opts.Projection, 0)
	if err != nil {
		return nil, adapters.MatchNone, fmt.Errorf("%w: rows updated but re-select could not be built: %v", adapters.ErrReadBack, err)
	}
	rs, err := c.exec.Fetch(ctx, stmt.SQL, stmt.Args)
	if err != nil {
		return nil, adapters.MatchNone, fmt.Errorf("%w: rows updated but re-select failed: %v", adapters.ErrReadBack, err)
	}
	return rs, matchOutcome(rs.Len(), int(res.Affected)), nil
}

// Delete удаляет строки по условию и возвращает число удаленных
func (c *Coordinator) Delete(ctx context.Context, table string, where *record.Record, opts adapters.WriteOptions) (int64, error) {
	var nativeWhere *record.Record
	if where != nil && where.Len() > 0 {
		ts, err := c.catalog.ValidateColumns(ctx, table, where.Names())
		if err != nil {
			return 0, err
		}
		if nativeWhere, err = c.toNativeRecord(where, ts); err != nil {
			return 0, err
		}
	} else if _, err := c.catalog.Get(ctx, table); err != nil {
		return 0, err
	}

	stmt, err := c.builder.Delete(table, nativeWhere, opts.AllowFullTable)
	if err != nil {
		return 0, err
	}

	res, err := c.exec.Execute(ctx, stmt.SQL, stmt.Args)
	if err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// toNativeRecord конвертирует значения записи в нативные представления
// согласно типам колонок таблицы
func (c *Coordinator) toNativeRecord(rec *record.Record, ts *adapters.TableSchema) (*record.Record, error) {
	out := record.New()
	for _, f := range rec.Fields() {
		col, _ := ts.Column(f.Name)
		nv, err := coerce.ToNative(f.Value, col.NativeType)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", adapters.ErrValue, f.Name, err)
		}
		out.Set(f.Name, nv)
	}
	return out, nil
}

// mergeCondition строит условие повторной выборки после update:
// исходное условие, в котором поля, задетые обновлением, переписаны
// новыми значениями. Поля, которых в условии не было, не добавляются:
// выборка идет по условию, а не по новым данным, чтобы отразить и
// конкурентные изменения других колонок.
func mergeCondition(values, where *record.Record) *record.Record {
	merged := record.New()
	if where != nil {
		for _, f := range where.Fields() {
			if v, ok := values.Get(f.Name); ok {
				merged.Set(f.Name, v)
			} else {
				merged.Set(f.Name, f.Value)
			}
		}
	}
	return merged
}

// emptyRowSet возвращает пустой результат с колонками проекции
// или всеми колонками таблицы
func emptyRowSet(ts *adapters.TableSchema, projection []string) *record.RowSet {
	if len(projection) > 0 {
		return record.NewRowSet(projection...)
	}
	return record.NewRowSet(ts.ColumnNames()...)
}

// insertOutcome - исход для путей, где каждая найденная строка
// гарантированно одна из записанных (RETURNING, диапазон ключа)
func insertOutcome(matched, written int) adapters.Outcome {
	switch {
	case matched == 0:
		return adapters.MatchNone
	case matched == 1 && written == 1:
		return adapters.MatchOne
	default:
		return adapters.MatchMany
	}
}

// matchOutcome - исход для выборки по совпадению значений: строк может
// найтись больше, чем записано, если таблица содержит дубликаты
func matchOutcome(matched, written int) adapters.Outcome {
	switch {
	case matched == 0:
		return adapters.MatchNone
	case matched > written:
		return adapters.MatchAmbiguous
	case matched == 1 && written == 1:
		return adapters.MatchOne
	default:
		return adapters.MatchMany
	}
}
