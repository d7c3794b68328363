package adapters

import (
	"context"
	"strings"

	"github.com/toonlabs/toondb/pkg/core/record"
)

// Session - минимальная способность подключения, на которой строится
// весь общий SQL слой. Каждый бэкенд реализует ее поверх своего
// драйвера; все остальное (построение запросов, кэш схем, цикл
// запись-чтение) живет в общем коде.
type Session interface {
	// Execute выполняет изменяющий запрос
	Execute(ctx context.Context, sql string, args []any) (ExecResult, error)

	// Fetch выполняет выборку и возвращает колонки с нативными
	// типами и строки в нативных представлениях драйвера
	Fetch(ctx context.Context, sql string, args []any) ([]Column, [][]any, error)

	// Close закрывает подключение
	Close(ctx context.Context) error
}

// Column - колонка результата выборки
type Column struct {
	// Name - имя колонки
	Name string

	// DatabaseType - нативный тип колонки по данным драйвера
	// (пустая строка, если драйвер тип не сообщает)
	DatabaseType string
}

// ExecResult - результат изменяющего запроса
type ExecResult struct {
	// Affected - число затронутых строк
	Affected int64

	// LastInsertID - идентификатор последней вставленной строки,
	// если бэкенд его сообщает (MySQL, SQLite)
	LastInsertID int64

	// HasLastInsertID - сообщил ли бэкенд LastInsertID
	HasLastInsertID bool
}

// ColumnSchema - метаданные одной колонки таблицы
type ColumnSchema struct {
	Name            string // Имя колонки
	NativeType      string // Нативный тип СУБД ("integer", "varchar(255)", ...)
	Nullable        bool   // Допускает ли NULL
	IsPrimaryKey    bool   // Входит ли в первичный ключ
	IsAutoIncrement bool   // Генерируется ли значение автоматически
	Default         string // Выражение значения по умолчанию (пустое = нет)
}

// TableSchema - метаданные таблицы
type TableSchema struct {
	Name    string         // Имя таблицы
	Columns []ColumnSchema // Колонки в порядке объявления
}

// Column возвращает метаданные колонки по имени (без учета регистра)
func (s *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, col := range s.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return ColumnSchema{}, false
}

// ColumnNames возвращает имена колонок в порядке объявления
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// PrimaryKey возвращает имена колонок первичного ключа
func (s *TableSchema) PrimaryKey() []string {
	var pk []string
	for _, col := range s.Columns {
		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

// AutoIncrementColumn возвращает имя автогенерируемой колонки
// первичного ключа, если она единственная
func (s *TableSchema) AutoIncrementColumn() (string, bool) {
	pk := ""
	for _, col := range s.Columns {
		if col.IsPrimaryKey && col.IsAutoIncrement {
			if pk != "" {
				return "", false
			}
			pk = col.Name
		}
	}
	return pk, pk != ""
}

// ConflictStrategy - поведение вставки при конфликте уникальности
type ConflictStrategy string

const (
	// ConflictFail - обычный INSERT, дубликат дает ошибку
	ConflictFail ConflictStrategy = "fail"

	// ConflictIgnore - пропустить дубликаты
	// SQLite:     INSERT OR IGNORE
	// PostgreSQL: INSERT ... ON CONFLICT DO NOTHING
	// MySQL:      INSERT IGNORE
	ConflictIgnore ConflictStrategy = "ignore"

	// ConflictReplace - заменить существующую строку
	// SQLite:     INSERT OR REPLACE
	// PostgreSQL: INSERT ... ON CONFLICT (pk) DO UPDATE
	// MySQL:      REPLACE INTO
	ConflictReplace ConflictStrategy = "replace"
)

// WriteOptions - параметры структурированных операций записи
type WriteOptions struct {
	// Conflict - поведение при конфликте уникальности (пустое = fail)
	Conflict ConflictStrategy

	// AllowFullTable разрешает update/delete с пустым условием.
	// Без явного разрешения такая операция отклоняется.
	AllowFullTable bool

	// Where - явное условие повторной выборки после вставки.
	// Если задано, используется вместо восстановления строк по
	// идентификатору или совпадению значений.
	Where *record.Record

	// Projection - колонки результата повторной выборки
	// (пустой срез = все колонки)
	Projection []string

	// Limit ограничивает число строк повторной выборки после
	// массовой вставки (0 = без ограничения)
	Limit int64
}

// Outcome - исход восстановления записанных строк после записи
type Outcome int

const (
	// MatchNone - затронутых строк нет (вставка подавлена конфликтом
	// или условие не совпало ни с одной строкой)
	MatchNone Outcome = iota

	// MatchOne - найдена ровно одна строка на одну записанную
	MatchOne

	// MatchMany - найдено несколько строк (массовая запись)
	MatchMany

	// MatchAmbiguous - найдено больше строк, чем записано: в таблице
	// есть дубликаты по значениям, точное соответствие неопределимо
	MatchAmbiguous
)

// String возвращает текстовое имя исхода
func (o Outcome) String() string {
	switch o {
	case MatchNone:
		return "none"
	case MatchOne:
		return "one"
	case MatchMany:
		return "many"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}
