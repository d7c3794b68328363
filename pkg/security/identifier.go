// Package security проверяет идентификаторы и запросы перед тем, как
// они попадут в текст SQL. Имена таблиц и колонок невозможно передать
// плейсхолдером, поэтому единственная защита от инъекции через
// идентификатор - строгая валидация до построения запроса.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Допустимая форма простого идентификатора: буква или подчеркивание,
// дальше буквы, цифры и подчеркивания.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MaxIdentifierLength - общий потолок длины идентификатора.
// PostgreSQL ограничивает имена 63 байтами, MySQL - 64; берем меньшее.
const MaxIdentifierLength = 63

// ValidateIdentifier проверяет имя таблицы или колонки.
//
// Разрешены только буквы ASCII, цифры и подчеркивание, первый символ
// не цифра. Имя таблицы может быть квалифицировано схемой через одну
// точку ("schema.table"), обе части проверяются отдельно.
//
// Возвращает error с именем и причиной отказа, если имя небезопасно.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier must not be empty")
	}

	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return fmt.Errorf("invalid identifier %q: at most one qualifying dot allowed", name)
	}

	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid identifier %q: empty name part", name)
		}
		if len(part) > MaxIdentifierLength {
			return fmt.Errorf("invalid identifier %q: part longer than %d characters", name, MaxIdentifierLength)
		}
		if !identifierPattern.MatchString(part) {
			return fmt.Errorf("invalid identifier %q: only letters, digits and underscore allowed", name)
		}
	}

	return nil
}

// ValidateIdentifiers проверяет список имен колонок.
// Квалификация схемой для колонок не допускается.
func ValidateIdentifiers(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("column list must not be empty")
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if strings.Contains(name, ".") {
			return fmt.Errorf("invalid column %q: qualified names not allowed", name)
		}
		if err := ValidateIdentifier(name); err != nil {
			return err
		}

		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate column %q", name)
		}
		seen[key] = struct{}{}
	}

	return nil
}
