package base

import (
	"fmt"
	"strings"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/record"
	"github.com/toonlabs/toondb/pkg/security"
)

// Statement - параметризованный SQL запрос
type Statement struct {
	SQL  string
	Args []any
}

// Builder строит параметризованные запросы в синтаксисе диалекта.
// Значения никогда не интерполируются в текст; идентификаторы проходят
// валидацию перед квотированием.
type Builder struct {
	dialect *Dialect
}

// NewBuilder создает построитель запросов для диалекта
func NewBuilder(d *Dialect) *Builder {
	return &Builder{dialect: d}
}

// Insert строит INSERT для одной или нескольких строк одним запросом.
// Все строки обязаны иметь одинаковый набор и порядок колонок;
// параметры идут в порядке строк (row-major).
//
// withReturning добавляет клаузу возврата вставленных строк, если
// диалект ее поддерживает; projection сужает возвращаемые колонки.
// pk нужен диалектам, выражающим стратегию конфликта через первичный
// ключ.
func (b *Builder) Insert(table string, rows []*record.Record, strategy adapters.ConflictStrategy, pk []string, withReturning bool, projection []string) (Statement, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if err := b.checkProjection(projection); err != nil {
		return Statement{}, err
	}
	if len(rows) == 0 {
		return Statement{}, fmt.Errorf("%w: no rows to insert", adapters.ErrValue)
	}

	columns := rows[0].Names()
	if err := security.ValidateIdentifiers(columns); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	for i, row := range rows[1:] {
		if !rows[0].SameShape(row) {
			return Statement{}, fmt.Errorf("%w: row %d does not match the column set of row 0", adapters.ErrValue, i+1)
		}
	}

	prefix, err := b.dialect.InsertPrefix(strategy)
	if err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	suffix, err := b.dialect.ConflictSuffix(strategy, pk, columns)
	if err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = b.dialect.Quote(col)
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(" ")
	sb.WriteString(b.dialect.QuoteTable(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(")")

	if withReturning && b.dialect.Returning == ReturningOutput {
		sb.WriteString(b.outputClause(projection))
	}

	sb.WriteString(" VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c, val := range row.Values() {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(b.dialect.Placeholder(n))
			args = append(args, val)
			n++
		}
		sb.WriteString(")")
	}

	sb.WriteString(suffix)

	if withReturning && b.dialect.Returning == ReturningSuffix {
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.selectList(projection))
	}

	return Statement{SQL: sb.String(), Args: args}, nil
}

// Update строит UPDATE по условию равенства.
// Параметры SET идут перед параметрами WHERE. Пустое условие
// допускается только с allowFullTable.
func (b *Builder) Update(table string, values, where *record.Record, withReturning bool, projection []string, allowFullTable bool) (Statement, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if err := b.checkProjection(projection); err != nil {
		return Statement{}, err
	}
	if values == nil || values.Len() == 0 {
		return Statement{}, fmt.Errorf("%w: no values to update", adapters.ErrValue)
	}
	if err := security.ValidateIdentifiers(values.Names()); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if emptyCondition(where) && !allowFullTable {
		return Statement{}, fmt.Errorf("%w: update on %s", adapters.ErrFullTable, table)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.dialect.QuoteTable(table))
	sb.WriteString(" SET ")

	args := make([]any, 0, values.Len())
	n := 1
	for i, f := range values.Fields() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.dialect.Quote(f.Name))
		sb.WriteString(" = ")
		sb.WriteString(b.dialect.Placeholder(n))
		args = append(args, f.Value)
		n++
	}

	if withReturning && b.dialect.Returning == ReturningOutput {
		sb.WriteString(b.outputClause(projection))
	}

	clause, whereArgs, err := b.whereClause(where, n)
	if err != nil {
		return Statement{}, err
	}
	if clause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(clause)
		args = append(args, whereArgs...)
	}

	if withReturning && b.dialect.Returning == ReturningSuffix {
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.selectList(projection))
	}

	return Statement{SQL: sb.String(), Args: args}, nil
}

// Delete строит DELETE по условию равенства.
// Пустое условие допускается только с allowFullTable.
func (b *Builder) Delete(table string, where *record.Record, allowFullTable bool) (Statement, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if emptyCondition(where) && !allowFullTable {
		return Statement{}, fmt.Errorf("%w: delete on %s", adapters.ErrFullTable, table)
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.dialect.QuoteTable(table))

	clause, args, err := b.whereClause(where, 1)
	if err != nil {
		return Statement{}, err
	}
	if clause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(clause)
	}

	return Statement{SQL: sb.String(), Args: args}, nil
}

// SelectWhere строит SELECT по условию равенства.
// projection сужает список колонок (пустой = *), limit ограничивает
// число строк (0 = без ограничения).
func (b *Builder) SelectWhere(table string, where *record.Record, projection []string, limit int64) (Statement, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if err := b.checkProjection(projection); err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.dialect.SelectTop(limit))
	sb.WriteString(b.selectList(projection))
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteTable(table))

	clause, args, err := b.whereClause(where, 1)
	if err != nil {
		return Statement{}, err
	}
	if clause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(clause)
	}
	sb.WriteString(b.dialect.LimitSuffix(limit))

	return Statement{SQL: sb.String(), Args: args}, nil
}

// SelectKeyRange строит SELECT по диапазону значений ключа
// (восстановление вставленных строк через LAST_INSERT_ID)
func (b *Builder) SelectKeyRange(table, keyCol string, from, to int64, projection []string) (Statement, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if err := security.ValidateIdentifier(keyCol); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if err := b.checkProjection(projection); err != nil {
		return Statement{}, err
	}

	key := b.dialect.Quote(keyCol)
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s >= %s AND %s <= %s ORDER BY %s",
		b.selectList(projection),
		b.dialect.QuoteTable(table),
		key, b.dialect.Placeholder(1),
		key, b.dialect.Placeholder(2),
		key)

	return Statement{SQL: sql, Args: []any{from, to}}, nil
}

// SelectMatching строит SELECT по совпадению значений: дизъюнкция
// конъюнкций, по одной группе на искомую строку. Резервный путь
// восстановления, когда СУБД не возвращает идентификаторы вставки.
func (b *Builder) SelectMatching(table string, rows []*record.Record, projection []string, limit int64) (Statement, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	if err := b.checkProjection(projection); err != nil {
		return Statement{}, err
	}
	if len(rows) == 0 {
		return Statement{}, fmt.Errorf("%w: no rows to match", adapters.ErrValue)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.dialect.SelectTop(limit))
	sb.WriteString(b.selectList(projection))
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteTable(table))
	sb.WriteString(" WHERE ")

	var args []any
	n := 1
	for i, row := range rows {
		clause, groupArgs, err := b.whereClause(row, n)
		if err != nil {
			return Statement{}, err
		}
		if clause == "" {
			return Statement{}, fmt.Errorf("%w: row %d has no columns to match", adapters.ErrValue, i)
		}
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(")
		sb.WriteString(clause)
		sb.WriteString(")")
		args = append(args, groupArgs...)
		n += len(groupArgs)
	}

	sb.WriteString(b.dialect.LimitSuffix(limit))

	return Statement{SQL: sb.String(), Args: args}, nil
}

// selectList возвращает список колонок выборки: * или квотированную
// проекцию
func (b *Builder) selectList(projection []string) string {
	if len(projection) == 0 {
		return "*"
	}
	quoted := make([]string, len(projection))
	for i, col := range projection {
		quoted[i] = b.dialect.Quote(col)
	}
	return strings.Join(quoted, ", ")
}

// outputClause строит клаузу OUTPUT INSERTED для проекции
func (b *Builder) outputClause(projection []string) string {
	if len(projection) == 0 {
		return " OUTPUT INSERTED.*"
	}
	parts := make([]string, len(projection))
	for i, col := range projection {
		parts[i] = "INSERTED." + b.dialect.Quote(col)
	}
	return " OUTPUT " + strings.Join(parts, ", ")
}

func (b *Builder) checkProjection(projection []string) error {
	if len(projection) == 0 {
		return nil
	}
	if err := security.ValidateIdentifiers(projection); err != nil {
		return fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}
	return nil
}

// whereClause строит конъюнкцию равенств. NULL значения выражаются
// через IS NULL и параметров не добавляют.
func (b *Builder) whereClause(where *record.Record, startN int) (string, []any, error) {
	if emptyCondition(where) {
		return "", nil, nil
	}
	if err := security.ValidateIdentifiers(where.Names()); err != nil {
		return "", nil, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}

	var parts []string
	var args []any
	n := startN
	for _, f := range where.Fields() {
		if f.Value == nil {
			parts = append(parts, b.dialect.Quote(f.Name)+" IS NULL")
			continue
		}
		parts = append(parts, b.dialect.Quote(f.Name)+" = "+b.dialect.Placeholder(n))
		args = append(args, f.Value)
		n++
	}

	return strings.Join(parts, " AND "), args, nil
}

func emptyCondition(where *record.Record) bool {
	return where == nil || where.Len() == 0
}
