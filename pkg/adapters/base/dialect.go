// Package base содержит общий SQL слой: диалекты, построитель
// параметризованных запросов, кэш схем, исполнитель выборок и
// координатор циклов запись-чтение. Бэкенды подключают его через
// минимальный интерфейс adapters.Session.
package base

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/toonlabs/toondb/pkg/adapters"
)

// ReturningStyle - способ, которым СУБД возвращает вставленные строки
// прямо из изменяющего запроса
type ReturningStyle int

const (
	// ReturningNone - СУБД не умеет возвращать строки из записи
	ReturningNone ReturningStyle = iota

	// ReturningSuffix - суффикс RETURNING * (PostgreSQL, SQLite)
	ReturningSuffix

	// ReturningOutput - клауза OUTPUT INSERTED.* (MS SQL Server)
	ReturningOutput
)

// Dialect описывает особенности SQL одного типа СУБД: плейсхолдеры,
// квотирование идентификаторов, механизм возврата вставленных строк
// и запросы интроспекции схемы.
type Dialect struct {
	// Name - тип СУБД ("postgres", "mysql", "sqlite", "mssql")
	Name string

	// Returning - механизм возврата строк из изменяющего запроса
	Returning ReturningStyle

	// UsesLastInsertID - сообщает ли драйвер идентификатор
	// последней вставленной строки
	UsesLastInsertID bool

	placeholder    func(n int) string
	quoteChar      [2]string
	insertPrefix   func(strategy adapters.ConflictStrategy) (string, error)
	conflictSuffix func(strategy adapters.ConflictStrategy, pk, insertCols []string, quote func(string) string) (string, error)
	describe       func(ctx context.Context, s adapters.Session, schema, table string) (*adapters.TableSchema, error)
	listTables     func(ctx context.Context, s adapters.Session, schema string, includeViews bool) ([]string, error)
	selectTop      func(n int64) string
	limitSuffix    func(n int64) string
}

// Placeholder возвращает плейсхолдер параметра с номером n (с единицы)
func (d *Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

// Quote квотирует простой идентификатор
func (d *Dialect) Quote(ident string) string {
	return d.quoteChar[0] + ident + d.quoteChar[1]
}

// QuoteTable квотирует имя таблицы, возможно квалифицированное схемой
func (d *Dialect) QuoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// InsertPrefix возвращает начало INSERT для стратегии конфликта.
// Ошибка, если диалект стратегию не поддерживает.
func (d *Dialect) InsertPrefix(strategy adapters.ConflictStrategy) (string, error) {
	return d.insertPrefix(strategy)
}

// ConflictSuffix возвращает суффикс INSERT для стратегии конфликта
// (пустая строка, если диалект выражает стратегию префиксом)
func (d *Dialect) ConflictSuffix(strategy adapters.ConflictStrategy, pk, insertCols []string) (string, error) {
	if d.conflictSuffix == nil {
		return "", nil
	}
	return d.conflictSuffix(strategy, pk, insertCols, d.Quote)
}

// Describe читает метаданные таблицы из системного каталога
func (d *Dialect) Describe(ctx context.Context, s adapters.Session, schema, table string) (*adapters.TableSchema, error) {
	return d.describe(ctx, s, schema, table)
}

// ListTables возвращает упорядоченный список таблиц базы.
// includeViews добавляет представления.
func (d *Dialect) ListTables(ctx context.Context, s adapters.Session, schema string, includeViews bool) ([]string, error) {
	return d.listTables(ctx, s, schema, includeViews)
}

// SelectTop возвращает префикс ограничения числа строк после SELECT
// (TOP в MS SQL; пустая строка у остальных диалектов)
func (d *Dialect) SelectTop(n int64) string {
	if d.selectTop == nil || n <= 0 {
		return ""
	}
	return d.selectTop(n)
}

// LimitSuffix возвращает суффикс ограничения числа строк
// (LIMIT; пустая строка у диалектов с префиксом TOP)
func (d *Dialect) LimitSuffix(n int64) string {
	if d.limitSuffix == nil || n <= 0 {
		return ""
	}
	return d.limitSuffix(n)
}

// ========== Конструкторы диалектов ==========

// PostgresDialect - диалект PostgreSQL: $n, двойные кавычки, RETURNING
func PostgresDialect() *Dialect {
	return &Dialect{
		Name:      "postgres",
		Returning: ReturningSuffix,
		placeholder: func(n int) string {
			return "$" + strconv.Itoa(n)
		},
		quoteChar: [2]string{`"`, `"`},
		insertPrefix: func(strategy adapters.ConflictStrategy) (string, error) {
			return "INSERT INTO", nil
		},
		conflictSuffix: func(strategy adapters.ConflictStrategy, pk, insertCols []string, quote func(string) string) (string, error) {
			switch strategy {
			case "", adapters.ConflictFail:
				return "", nil
			case adapters.ConflictIgnore:
				return " ON CONFLICT DO NOTHING", nil
			case adapters.ConflictReplace:
				if len(pk) == 0 {
					return "", fmt.Errorf("conflict strategy 'replace' requires a primary key")
				}
				quotedPK := make([]string, len(pk))
				for i, col := range pk {
					quotedPK[i] = quote(col)
				}
				var sets []string
				for _, col := range insertCols {
					if containsFold(pk, col) {
						continue
					}
					sets = append(sets, quote(col)+" = EXCLUDED."+quote(col))
				}
				if len(sets) == 0 {
					return " ON CONFLICT (" + strings.Join(quotedPK, ", ") + ") DO NOTHING", nil
				}
				return " ON CONFLICT (" + strings.Join(quotedPK, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", "), nil
			default:
				return "", fmt.Errorf("unknown conflict strategy '%s'", strategy)
			}
		},
		describe:   describePostgres,
		listTables: listTablesPostgres,
		limitSuffix: func(n int64) string {
			return " LIMIT " + strconv.FormatInt(n, 10)
		},
	}
}

// MySQLDialect - диалект MySQL: ?, backticks, LAST_INSERT_ID
func MySQLDialect() *Dialect {
	return &Dialect{
		Name:             "mysql",
		Returning:        ReturningNone,
		UsesLastInsertID: true,
		placeholder: func(n int) string {
			return "?"
		},
		quoteChar: [2]string{"`", "`"},
		insertPrefix: func(strategy adapters.ConflictStrategy) (string, error) {
			switch strategy {
			case "", adapters.ConflictFail:
				return "INSERT INTO", nil
			case adapters.ConflictIgnore:
				return "INSERT IGNORE INTO", nil
			case adapters.ConflictReplace:
				return "REPLACE INTO", nil
			default:
				return "", fmt.Errorf("unknown conflict strategy '%s'", strategy)
			}
		},
		describe:   describeMySQL,
		listTables: listTablesMySQL,
		limitSuffix: func(n int64) string {
			return " LIMIT " + strconv.FormatInt(n, 10)
		},
	}
}

// SQLiteDialect - диалект SQLite: ?, двойные кавычки, RETURNING
func SQLiteDialect() *Dialect {
	return &Dialect{
		Name:             "sqlite",
		Returning:        ReturningSuffix,
		UsesLastInsertID: true,
		placeholder: func(n int) string {
			return "?"
		},
		quoteChar: [2]string{`"`, `"`},
		insertPrefix: func(strategy adapters.ConflictStrategy) (string, error) {
			switch strategy {
			case "", adapters.ConflictFail:
				return "INSERT INTO", nil
			case adapters.ConflictIgnore:
				return "INSERT OR IGNORE INTO", nil
			case adapters.ConflictReplace:
				return "INSERT OR REPLACE INTO", nil
			default:
				return "", fmt.Errorf("unknown conflict strategy '%s'", strategy)
			}
		},
		describe:   describeSQLite,
		listTables: listTablesSQLite,
		limitSuffix: func(n int64) string {
			return " LIMIT " + strconv.FormatInt(n, 10)
		},
	}
}

// MSSQLDialect - диалект MS SQL Server: @pN, квадратные скобки, OUTPUT.
// Стратегии конфликта кроме fail не поддерживаются (MERGE не используется).
func MSSQLDialect() *Dialect {
	return &Dialect{
		Name:      "mssql",
		Returning: ReturningOutput,
		placeholder: func(n int) string {
			return "@p" + strconv.Itoa(n)
		},
		quoteChar: [2]string{"[", "]"},
		insertPrefix: func(strategy adapters.ConflictStrategy) (string, error) {
			switch strategy {
			case "", adapters.ConflictFail:
				return "INSERT INTO", nil
			default:
				return "", fmt.Errorf("conflict strategy '%s' is not supported on mssql", strategy)
			}
		},
		describe:   describeMSSQL,
		listTables: listTablesMSSQL,
		selectTop: func(n int64) string {
			return "TOP (" + strconv.FormatInt(n, 10) + ") "
		},
	}
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
