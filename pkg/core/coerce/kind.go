// Package coerce конвертирует значения между нативными представлениями
// СУБД и каноническими примитивами, которые понимает кодек нотации:
// nil, bool, целые, float64, строки, упорядоченные последовательности
// и вложенные отображения.
package coerce

import "strings"

// Kind - семантический вид колонки, определяющий правило конвертации.
// Выбирается по объявленному нативному типу колонки (путь записи)
// или по фактическому типу значения (путь чтения).
type Kind int

const (
	KindPrimitive Kind = iota
	KindDate
	KindDateTime
	KindUUID
	KindBinary
	KindJSON
	KindArray
	KindDecimal
)

// KindOf определяет вид по имени нативного типа.
// Покрывает PostgreSQL, MySQL, SQLite и MS SQL Server; неизвестные
// типы считаются примитивами и проходят без конвертации.
func KindOf(nativeType string) Kind {
	t := strings.ToUpper(strings.TrimSpace(nativeType))

	// PostgreSQL массивы: "_int4", "text[]", "ARRAY"
	if strings.HasPrefix(t, "_") || strings.HasSuffix(t, "[]") || t == "ARRAY" {
		return KindArray
	}

	switch t {
	case "DATE":
		return KindDate

	case "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET",
		"TIMESTAMP", "TIMESTAMPTZ",
		"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE":
		return KindDateTime

	case "UUID", "UNIQUEIDENTIFIER":
		return KindUUID

	case "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB",
		"BINARY", "VARBINARY", "IMAGE":
		return KindBinary

	case "JSON", "JSONB":
		return KindJSON

	case "NUMERIC", "DECIMAL", "MONEY", "SMALLMONEY":
		return KindDecimal
	}

	// MySQL параметризованные типы: "decimal(10,2)", "varbinary(255)"
	switch {
	case strings.HasPrefix(t, "DECIMAL") || strings.HasPrefix(t, "NUMERIC"):
		return KindDecimal
	case strings.HasPrefix(t, "VARBINARY") || strings.HasPrefix(t, "BINARY"):
		return KindBinary
	}

	return KindPrimitive
}
