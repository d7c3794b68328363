package adapters

import (
	"context"
	"fmt"

	"github.com/toonlabs/toondb/pkg/core/record"
	"github.com/toonlabs/toondb/pkg/core/toon"
)

// Текстовая поверхность записи: полезная нагрузка приходит блоком
// табличной нотации и разбирается в записи перед вызовом
// структурированной операции. Результат, как и у структурированных
// операций, возвращается блоком нотации.

// InsertAndFetchText вставляет одну строку из блока нотации
func InsertAndFetchText(ctx context.Context, a Adapter, table, text string, opts WriteOptions) (string, Outcome, error) {
	rows, err := decodeRecords(text)
	if err != nil {
		return "", MatchNone, err
	}
	if len(rows) != 1 {
		return "", MatchNone, fmt.Errorf("%w: expected exactly one row, got %d", ErrValue, len(rows))
	}
	return a.InsertAndFetch(ctx, table, rows[0], opts)
}

// InsertManyAndFetchText вставляет строки из блока нотации
func InsertManyAndFetchText(ctx context.Context, a Adapter, table, text string, opts WriteOptions) (string, Outcome, error) {
	rows, err := decodeRecords(text)
	if err != nil {
		return "", MatchNone, err
	}
	return a.InsertManyAndFetch(ctx, table, rows, opts)
}

// UpdateAndFetchText обновляет строки: новые значения и условие
// приходят блоками нотации по одной записи в каждом. Пустой whereText
// означает отсутствие условия (и требует WriteOptions.AllowFullTable).
func UpdateAndFetchText(ctx context.Context, a Adapter, table, valuesText, whereText string, opts WriteOptions) (string, Outcome, error) {
	values, err := decodeOne(valuesText)
	if err != nil {
		return "", MatchNone, err
	}

	var where *record.Record
	if whereText != "" {
		if where, err = decodeOne(whereText); err != nil {
			return "", MatchNone, err
		}
	}

	return a.UpdateAndFetch(ctx, table, values, where, opts)
}

func decodeRecords(text string) ([]*record.Record, error) {
	rs, err := toon.NewCodec().Decode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ErrValue, err)
	}
	return rs.Records(), nil
}

func decodeOne(text string) (*record.Record, error) {
	rows, err := decodeRecords(text)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one row, got %d", ErrValue, len(rows))
	}
	return rows[0], nil
}
