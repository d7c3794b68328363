package toon

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/toonlabs/toondb/pkg/core/record"
)

const indent = "  "

// Encode сериализует RowSet в текст TOON.
// Пустой набор кодируется как "[0]:".
func Encode(rs *record.RowSet) (string, error) {
	if rs == nil || rs.Len() == 0 {
		return "[0]:", nil
	}

	var sb strings.Builder

	names := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		names[i] = encodeColumnName(col)
	}
	sb.WriteString(fmt.Sprintf("[%d]{%s}:", rs.Len(), strings.Join(names, ",")))

	for _, row := range rs.Rows {
		sb.WriteByte('\n')
		sb.WriteString(indent)
		for i, val := range row {
			if i > 0 {
				sb.WriteByte(',')
			}
			cell, err := encodeValue(val)
			if err != nil {
				return "", fmt.Errorf("column %s: %w", rs.Columns[i], err)
			}
			sb.WriteString(cell)
		}
	}

	return sb.String(), nil
}

// EncodeRecords сериализует список записей, проверяя однородность ключей
func EncodeRecords(records []*record.Record) (string, error) {
	rs, err := record.FromRecords(records)
	if err != nil {
		return "", err
	}
	return Encode(rs)
}

// encodeValue кодирует одно значение ячейки.
// Канонические значения: nil, bool, числа, строки, вложенные
// последовательности и отображения (уходят в JSON).
func encodeValue(val any) (string, error) {
	switch v := val.(type) {
	case nil:
		return "null", nil

	case bool:
		if v {
			return "true", nil
		}
		return "false", nil

	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil

	case float32:
		return encodeFloat(float64(v))
	case float64:
		return encodeFloat(v)

	case string:
		return encodeString(v), nil

	case []any, map[string]any:
		// Вложенные структуры - JSON внутри ячейки
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode nested value: %w", err)
		}
		return quote(string(data)), nil

	default:
		return "", fmt.Errorf("unsupported canonical type %T (value must pass coercion first)", val)
	}
}

func encodeFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v is not representable", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// encodeColumnName квотирует имя колонки в заголовке, если оно
// содержит символы разметки заголовка (псевдонимы результата могут
// содержать что угодно: SELECT 1 AS "a,b")
func encodeColumnName(name string) string {
	if name == "" || strings.ContainsAny(name, `,{}"`+"\n\r") ||
		name[0] == ' ' || name[len(name)-1] == ' ' {
		return quote(name)
	}
	return name
}

// encodeString возвращает строку как есть если она безопасна,
// иначе в кавычках с экранированием
func encodeString(s string) string {
	if needsQuoting(s) {
		return quote(s)
	}
	return s
}

// needsQuoting определяет, требует ли строка экранирования:
// пустые строки, разделители, кавычки, пробелы по краям и строки,
// которые при разборе выглядели бы как другой тип.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if s == "null" || s == "true" || s == "false" {
		return true
	}
	if strings.ContainsAny(s, ",\"\n\r") {
		return true
	}
	if s[0] == ' ' || s[len(s)-1] == ' ' {
		return true
	}
	// Строка, которая парсится как число, обязана быть в кавычках
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
