package coerce

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Слои разбора канонических datetime строк: сначала наивные ISO формы,
// затем формы со смещением.
var dateTimeLayouts = []string{
	DateTimeLayout,
	DateTimeLayout + ".999999999",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// ToNative конвертирует каноническое значение в нативное представление
// для параметра SQL согласно объявленному типу целевой колонки.
// Неизвестный тип - значение проходит без изменений (драйвер решает сам).
func ToNative(val any, nativeType string) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch KindOf(nativeType) {
	case KindDate:
		return toNativeDate(val, nativeType)

	case KindDateTime:
		return toNativeDateTime(val, nativeType)

	case KindUUID:
		return toNativeUUID(val, nativeType)

	case KindBinary:
		return toNativeBinary(val, nativeType)

	case KindJSON:
		return toNativeJSON(val)

	case KindArray:
		return toNativeArray(val)

	default:
		return val, nil
	}
}

func toNativeDate(val any, nativeType string) (any, error) {
	switch v := val.(type) {
	case string:
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q for %s column (want YYYY-MM-DD): %w", v, nativeType, err)
		}
		return t, nil
	case time.Time:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", val, nativeType)
	}
}

func toNativeDateTime(val any, nativeType string) (any, error) {
	switch v := val.(type) {
	case string:
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		// Дата без времени тоже допустима для timestamp колонки
		if t, err := time.Parse(DateLayout, v); err == nil {
			return t, nil
		}
		return nil, fmt.Errorf("invalid datetime %q for %s column (want ISO-8601)", v, nativeType)
	case time.Time:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", val, nativeType)
	}
}

func toNativeUUID(val any, nativeType string) (any, error) {
	switch v := val.(type) {
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q for %s column: %w", v, nativeType, err)
		}
		// Нормализованная строка - все драйверы принимают текстовую форму
		return u.String(), nil
	case uuid.UUID:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", val, nativeType)
	}
}

func toNativeBinary(val any, nativeType string) (any, error) {
	switch v := val.(type) {
	case string:
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 for %s column: %w", nativeType, err)
		}
		return data, nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", val, nativeType)
	}
}

// toNativeJSON сериализует вложенные структуры в JSON текст.
// Драйверы принимают JSON/JSONB колонки как строку.
func toNativeJSON(val any) (any, error) {
	switch val.(type) {
	case string, []byte:
		return val, nil
	}
	data, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %T as JSON: %w", val, err)
	}
	return string(data), nil
}

// toNativeArray прогоняет элементы последовательности рекурсивно.
// Сама последовательность передается драйверу как есть (pgx кодирует
// slice в PostgreSQL массив).
func toNativeArray(val any) (any, error) {
	seq, ok := val.([]any)
	if !ok {
		return val, nil
	}
	out := make([]any, len(seq))
	for i, item := range seq {
		converted, err := ToNative(item, "")
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}
		out[i] = converted
	}
	return out, nil
}
