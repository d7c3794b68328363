package record

import "fmt"

// Field - одна пара имя→значение внутри записи.
// Порядок полей значим: он определяет порядок колонок в нотации
// и порядок параметров в SQL запросах.
type Field struct {
	Name  string
	Value any
}

// Record - упорядоченная запись (аналог строки таблицы или документа).
// В отличие от map сохраняет порядок ключей, поэтому сериализация
// и генерация placeholders детерминированы.
type Record struct {
	fields []Field
}

// New создает пустую запись
func New() *Record {
	return &Record{}
}

// FromFields создает запись из готового списка полей
func FromFields(fields ...Field) *Record {
	return &Record{fields: fields}
}

// Set добавляет поле в конец записи (или заменяет значение существующего).
// Возвращает запись для цепочки вызовов.
func (r *Record) Set(name string, value any) *Record {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return r
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: value})
	return r
}

// Get возвращает значение поля по имени
func (r *Record) Get(name string) (any, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names возвращает имена полей в порядке добавления
func (r *Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Values возвращает значения полей в порядке добавления
func (r *Record) Values() []any {
	values := make([]any, len(r.fields))
	for i, f := range r.fields {
		values[i] = f.Value
	}
	return values
}

// Fields возвращает поля записи
func (r *Record) Fields() []Field {
	return r.fields
}

// Len возвращает количество полей
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

// SameShape проверяет что записи имеют одинаковый набор и порядок ключей
func (r *Record) SameShape(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != other.fields[i].Name {
			return false
		}
	}
	return true
}

// RowSet - упорядоченный набор однородных записей.
// Представление columns + rows гарантирует инвариант "одинаковый порядок
// ключей в каждой записи" на уровне структуры данных.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// NewRowSet создает пустой RowSet с заданными колонками
func NewRowSet(columns ...string) *RowSet {
	return &RowSet{Columns: columns}
}

// Append добавляет строку. Количество значений должно совпадать
// с количеством колонок.
func (rs *RowSet) Append(values ...any) error {
	if len(values) != len(rs.Columns) {
		return fmt.Errorf("row has %d values, expected %d", len(values), len(rs.Columns))
	}
	rs.Rows = append(rs.Rows, values)
	return nil
}

// Len возвращает количество строк
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Record материализует строку i как Record
func (rs *RowSet) Record(i int) *Record {
	rec := &Record{fields: make([]Field, len(rs.Columns))}
	for j, col := range rs.Columns {
		rec.fields[j] = Field{Name: col, Value: rs.Rows[i][j]}
	}
	return rec
}

// Records материализует все строки как записи
func (rs *RowSet) Records() []*Record {
	records := make([]*Record, len(rs.Rows))
	for i := range rs.Rows {
		records[i] = rs.Record(i)
	}
	return records
}

// FromRecords собирает RowSet из списка записей.
// Все записи обязаны иметь одинаковый набор и порядок ключей -
// расхождение это жесткая ошибка, а не объединение ключей.
func FromRecords(records []*Record) (*RowSet, error) {
	if len(records) == 0 {
		return &RowSet{}, nil
	}

	first := records[0]
	rs := NewRowSet(first.Names()...)

	for i, rec := range records {
		if !first.SameShape(rec) {
			return nil, fmt.Errorf("record %d has keys %v, expected %v (all records must share the same key set and order)",
				i, rec.Names(), first.Names())
		}
		rs.Rows = append(rs.Rows, rec.Values())
	}

	return rs, nil
}
