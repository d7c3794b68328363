package coerce

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/toonlabs/toondb/pkg/core/record"
)

// Форматы канонических дат (ISO-8601)
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
	TimeLayout     = "15:04:05"
)

// ToCanonical конвертирует нативное значение БД в каноническое.
// nativeType - объявленный тип колонки результата, если известен
// (проекции могут синтезировать вычисляемые колонки, поэтому решение
// принимается в первую очередь по фактическому виду значения).
func ToCanonical(val any, nativeType string) any {
	if val == nil {
		return nil
	}

	kind := KindOf(nativeType)

	switch v := val.(type) {
	case bool, string, int64, float64:
		return v

	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)

	case time.Time:
		if kind == KindDate {
			return v.Format(DateLayout)
		}
		return formatDateTime(v)

	case []byte:
		return bytesToCanonical(v, kind)

	case [16]byte:
		// UUID как массив байт (pgx)
		return uuid.UUID(v).String()

	case uuid.UUID:
		return v.String()

	case pgtype.Numeric:
		return numericToCanonical(v)

	case primitive.ObjectID:
		// Идентификатор документа - hex строка
		return v.Hex()

	case primitive.DateTime:
		return formatDateTime(v.Time().UTC())

	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil {
			return f
		}
		return v.String()

	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(v.Data)

	case primitive.A:
		return sliceToCanonical([]any(v))

	case primitive.M:
		return mapToCanonical(map[string]any(v))

	case primitive.D:
		// Упорядоченный документ - сохраняем порядок ключей через map
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = ToCanonical(e.Value, "")
		}
		return m

	case []any:
		return sliceToCanonical(v)

	case map[string]any:
		return mapToCanonical(v)

	default:
		if s, ok := val.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("%v", val)
	}
}

// CleanRowSet прогоняет весь RowSet через путь чтения.
// types - нативные типы колонок результата в том же порядке, что и
// rs.Columns (пустая строка когда тип неизвестен). Обязательный шаг
// перед передачей набора кодеку.
func CleanRowSet(rs *record.RowSet, types []string) {
	for _, row := range rs.Rows {
		for i := range row {
			nativeType := ""
			if i < len(types) {
				nativeType = types[i]
			}
			row[i] = ToCanonical(row[i], nativeType)
		}
	}
}

// formatDateTime форматирует момент времени в ISO-8601.
// Доли секунды сохраняются до наносекунд, хвостовые нули отбрасываются.
// UTC и "наивные" значения выводятся без смещения, остальные - с ним.
func formatDateTime(t time.Time) string {
	if _, offset := t.Zone(); offset == 0 {
		return t.Format(DateTimeLayout + ".999999999")
	}
	return t.Format(DateTimeLayout + ".999999999-07:00")
}

// bytesToCanonical конвертирует []byte согласно виду колонки.
// Драйверы MySQL и SQLite возвращают []byte и для текстовых колонок,
// поэтому в base64 уходят только настоящие бинарные типы.
func bytesToCanonical(v []byte, kind Kind) any {
	switch kind {
	case KindBinary:
		return base64.StdEncoding.EncodeToString(v)
	case KindUUID:
		if len(v) == 16 {
			return uuid.UUID([16]byte(v)).String()
		}
		return string(v)
	case KindDecimal:
		if f, err := strconv.ParseFloat(string(v), 64); err == nil {
			return f
		}
		return string(v)
	default:
		return string(v)
	}
}

// numericToCanonical конвертирует PostgreSQL NUMERIC/DECIMAL в float64
func numericToCanonical(v pgtype.Numeric) any {
	if !v.Valid {
		return nil
	}
	if v.NaN {
		return "NaN"
	}
	if v.InfinityModifier != 0 {
		if v.InfinityModifier > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}

	f64, err := v.Float64Value()
	if err == nil && f64.Valid {
		return f64.Float64
	}

	// Fallback - точное десятичное представление
	return numericString(v)
}

// numericString собирает десятичную запись из мантиссы и экспоненты
func numericString(v pgtype.Numeric) string {
	s := v.Int.String()
	if v.Exp == 0 {
		return s
	}
	if v.Exp > 0 {
		return s + strings.Repeat("0", int(v.Exp))
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	frac := int(-v.Exp)
	if len(s) <= frac {
		s = strings.Repeat("0", frac-len(s)+1) + s
	}
	s = s[:len(s)-frac] + "." + s[len(s)-frac:]
	if neg {
		return "-" + s
	}
	return s
}

func sliceToCanonical(v []any) []any {
	out := make([]any, len(v))
	for i, item := range v {
		out[i] = ToCanonical(item, "")
	}
	return out
}

func mapToCanonical(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, item := range v {
		out[k] = ToCanonical(item, "")
	}
	return out
}
