package adapters

import "errors"

// Классы ошибок адаптера. Оборачиваются через fmt.Errorf("%w: ...", ...),
// вызывающий код различает их через errors.Is.
var (
	// ErrConnection - не удалось установить или использовать подключение
	ErrConnection = errors.New("connection error")

	// ErrQuery - СУБД отвергла запрос или его выполнение
	ErrQuery = errors.New("query error")

	// ErrSchema - таблица не найдена или метаданные не удалось прочитать
	ErrSchema = errors.New("schema error")

	// ErrSecurity - идентификатор или запрос не прошли валидацию
	ErrSecurity = errors.New("security violation")

	// ErrValue - значение не удалось конвертировать в нативное представление
	ErrValue = errors.New("value error")

	// ErrReadBack - запись применена, но вернуть затронутые строки не удалось.
	// Данные в базе изменены; вызывающий код не должен трактовать эту
	// ошибку как отказ записи.
	ErrReadBack = errors.New("read-back failed")

	// ErrFullTable - пустое условие затронуло бы всю таблицу,
	// а явное разрешение не выдано
	ErrFullTable = errors.New("empty condition would affect every row")
)
