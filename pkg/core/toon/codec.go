// Package toon реализует кодек компактной табличной нотации TOON
// (Token-Oriented Object Notation) для однородных наборов записей.
//
// Формат:
//
//	[2]{name,age}:
//	  Alice,30
//	  Bob,25
//
// Заголовок содержит количество строк и список колонок, далее по одной
// строке данных на запись. Значения с разделителями, кавычками или
// переводами строк экранируются двойными кавычками. Вложенные массивы
// и объекты сериализуются в JSON внутри ячейки.
package toon

import "github.com/toonlabs/toondb/pkg/core/record"

// Codec - граница сериализации между адаптерами и нотацией.
// Адаптеры передают кодеку однородные записи и получают текстовый блок,
// не заглядывая в грамматику нотации.
type Codec interface {
	// Encode сериализует RowSet в текст нотации
	Encode(rs *record.RowSet) (string, error)

	// Decode разбирает текст нотации обратно в RowSet
	Decode(text string) (*record.RowSet, error)
}

// codec - кодек TOON по умолчанию
type codec struct{}

// NewCodec создает кодек TOON
func NewCodec() Codec {
	return codec{}
}

func (codec) Encode(rs *record.RowSet) (string, error) {
	return Encode(rs)
}

func (codec) Decode(text string) (*record.RowSet, error) {
	return Decode(text)
}
