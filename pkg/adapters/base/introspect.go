package base

import (
	"context"
	"fmt"
	"strings"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/security"
)

// Запросы интроспекции системных каталогов. Все значения приходят
// через Session.Fetch в нативных представлениях драйвера, поэтому
// строки и числа вытаскиваются через asString/asInt64.

func describePostgres(ctx context.Context, s adapters.Session, schema, table string) (*adapters.TableSchema, error) {
	const colQuery = `
		SELECT column_name, data_type, is_nullable, column_default, is_identity
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	_, rows, err := s.Fetch(ctx, colQuery, []any{schema, table})
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s.%s: %w", schema, table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s not found", adapters.ErrSchema, schema, table)
	}

	ts := &adapters.TableSchema{Name: table}
	for _, row := range rows {
		def := asString(row[3])
		ts.Columns = append(ts.Columns, adapters.ColumnSchema{
			Name:       asString(row[0]),
			NativeType: asString(row[1]),
			Nullable:   strings.EqualFold(asString(row[2]), "YES"),
			Default:    def,
			IsAutoIncrement: strings.EqualFold(asString(row[4]), "YES") ||
				strings.HasPrefix(def, "nextval("),
		})
	}

	pk, err := primaryKeyInformationSchema(ctx, s, "$1", "$2", schema, table)
	if err != nil {
		return nil, err
	}
	markPrimaryKey(ts, pk)

	return ts, nil
}

func listTablesPostgres(ctx context.Context, s adapters.Session, schema string, includeViews bool) ([]string, error) {
	query := `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	if includeViews {
		query = `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`
	}
	return fetchNames(ctx, s, query, []any{schema})
}

func describeMySQL(ctx context.Context, s adapters.Session, schema, table string) (*adapters.TableSchema, error) {
	const colQuery = `
		SELECT column_name, column_type, is_nullable, column_key, extra, column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`

	_, rows, err := s.Fetch(ctx, colQuery, []any{table})
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: table %s not found", adapters.ErrSchema, table)
	}

	ts := &adapters.TableSchema{Name: table}
	for _, row := range rows {
		ts.Columns = append(ts.Columns, adapters.ColumnSchema{
			Name:            asString(row[0]),
			NativeType:      asString(row[1]),
			Nullable:        strings.EqualFold(asString(row[2]), "YES"),
			IsPrimaryKey:    strings.EqualFold(asString(row[3]), "PRI"),
			IsAutoIncrement: strings.Contains(strings.ToLower(asString(row[4])), "auto_increment"),
			Default:         asString(row[5]),
		})
	}

	return ts, nil
}

func listTablesMySQL(ctx context.Context, s adapters.Session, schema string, includeViews bool) ([]string, error) {
	query := `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	if includeViews {
		query = `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`
	}
	return fetchNames(ctx, s, query, nil)
}

func describeSQLite(ctx context.Context, s adapters.Session, schema, table string) (*adapters.TableSchema, error) {
	// PRAGMA не принимает плейсхолдеры - имя проходит валидацию
	// и подставляется квотированным
	if err := security.ValidateIdentifier(table); err != nil {
		return nil, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}

	_, rows, err := s.Fetch(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: table %s not found", adapters.ErrSchema, table)
	}

	// Колонки PRAGMA table_info: cid, name, type, notnull, dflt_value, pk
	ts := &adapters.TableSchema{Name: table}
	for _, row := range rows {
		nativeType := asString(row[2])
		isPK := asInt64(row[5]) > 0
		ts.Columns = append(ts.Columns, adapters.ColumnSchema{
			Name:         asString(row[1]),
			NativeType:   nativeType,
			Nullable:     asInt64(row[3]) == 0 && !isPK,
			IsPrimaryKey: isPK,
			// INTEGER PRIMARY KEY - синоним rowid, значение генерируется
			IsAutoIncrement: isPK && strings.EqualFold(nativeType, "INTEGER"),
			Default:         asString(row[4]),
		})
	}

	return ts, nil
}

func listTablesSQLite(ctx context.Context, s adapters.Session, schema string, includeViews bool) ([]string, error) {
	query := `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	if includeViews {
		query = `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	}
	return fetchNames(ctx, s, query, nil)
}

func describeMSSQL(ctx context.Context, s adapters.Session, schema, table string) (*adapters.TableSchema, error) {
	const colQuery = `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
		       COLUMNPROPERTY(OBJECT_ID(@p1 + '.' + @p2), c.COLUMN_NAME, 'IsIdentity')
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`

	_, rows, err := s.Fetch(ctx, colQuery, []any{schema, table})
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s.%s: %w", schema, table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s not found", adapters.ErrSchema, schema, table)
	}

	ts := &adapters.TableSchema{Name: table}
	for _, row := range rows {
		ts.Columns = append(ts.Columns, adapters.ColumnSchema{
			Name:            asString(row[0]),
			NativeType:      asString(row[1]),
			Nullable:        strings.EqualFold(asString(row[2]), "YES"),
			Default:         asString(row[3]),
			IsAutoIncrement: asInt64(row[4]) == 1,
		})
	}

	pk, err := primaryKeyInformationSchema(ctx, s, "@p1", "@p2", schema, table)
	if err != nil {
		return nil, err
	}
	markPrimaryKey(ts, pk)

	return ts, nil
}

func listTablesMSSQL(ctx context.Context, s adapters.Session, schema string, includeViews bool) ([]string, error) {
	query := `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`
	if includeViews {
		query = `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY TABLE_NAME`
	}
	return fetchNames(ctx, s, query, []any{schema})
}

// primaryKeyInformationSchema читает состав первичного ключа через
// information_schema (общая форма для PostgreSQL и MS SQL)
func primaryKeyInformationSchema(ctx context.Context, s adapters.Session, p1, p2, schema, table string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = %s AND tc.table_name = %s
		ORDER BY kcu.ordinal_position`, p1, p2)

	names, err := fetchNames(ctx, s, query, []any{schema, table})
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s.%s: %w", schema, table, err)
	}
	return names, nil
}

func markPrimaryKey(ts *adapters.TableSchema, pk []string) {
	for i := range ts.Columns {
		if containsFold(pk, ts.Columns[i].Name) {
			ts.Columns[i].IsPrimaryKey = true
		}
	}
}

// fetchNames выполняет выборку с единственной текстовой колонкой
func fetchNames(ctx context.Context, s adapters.Session, query string, args []any) ([]string, error) {
	_, rows, err := s.Fetch(ctx, query, args)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, asString(row[0]))
	}
	return names, nil
}

// asString приводит нативное значение драйвера к строке.
// MySQL и SQLite возвращают текст как []byte.
func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// asInt64 приводит нативное значение драйвера к int64
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case []byte:
		var out int64
		fmt.Sscanf(string(n), "%d", &out)
		return out
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
