package security

import (
	"fmt"
	"regexp"
	"strings"
)

// QueryValidator проверяет сырые SQL запросы на поверхности Query.
//
// В read-only режиме пропускаются только SELECT и WITH запросы,
// изменяющие и служебные операции блокируются. Структурированные
// операции записи (insert/update/delete) идут через построитель
// запросов и этим валидатором не проверяются.
type QueryValidator struct {
	readOnly bool
}

// NewQueryValidator создает валидатор запросов.
// readOnly=false пропускает любые запросы без проверки.
func NewQueryValidator(readOnly bool) *QueryValidator {
	return &QueryValidator{readOnly: readOnly}
}

// Ключевые слова, запрещенные в read-only режиме.
// Сопоставляются как отдельные слова, поэтому "deleted_at" или
// "selected" ложных срабатываний не дают.
var forbiddenKeywords = regexp.MustCompile(`(?i)\b(` +
	`INSERT|UPDATE|DELETE|TRUNCATE|MERGE|REPLACE|` +
	`DROP|CREATE|ALTER|RENAME|` +
	`GRANT|REVOKE|` +
	`EXECUTE|EXEC|CALL|` +
	`PRAGMA|ATTACH|DETACH|` +
	`BEGIN|COMMIT|ROLLBACK` +
	`)\b`)

// Validate проверяет SQL запрос.
//
// В read-only режиме требует:
//   - запрос начинается с SELECT или WITH
//   - нет запрещенных ключевых слов
//   - не больше одной команды (";" только в самом конце)
//   - нет SQL комментариев (могут скрывать вредоносный код)
func (v *QueryValidator) Validate(sql string) error {
	if !v.readOnly {
		return nil
	}

	normalized := strings.ToUpper(strings.TrimSpace(sql))

	if !strings.HasPrefix(normalized, "SELECT") && !strings.HasPrefix(normalized, "WITH") {
		return fmt.Errorf("only SELECT and WITH queries allowed in read-only mode, got: %s",
			firstWord(normalized))
	}

	if m := forbiddenKeywords.FindString(sql); m != "" {
		return fmt.Errorf("forbidden keyword %q in read-only mode", strings.ToUpper(m))
	}

	if err := checkSingleStatement(sql); err != nil {
		return err
	}

	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") {
		return fmt.Errorf("SQL comments not allowed in read-only mode")
	}

	return nil
}

// ReadOnly возвращает текущий режим валидатора
func (v *QueryValidator) ReadOnly() bool {
	return v.readOnly
}

func checkSingleStatement(sql string) error {
	trimmed := strings.TrimSpace(sql)

	switch strings.Count(trimmed, ";") {
	case 0:
		return nil
	case 1:
		if !strings.HasSuffix(trimmed, ";") {
			return fmt.Errorf("semicolon allowed only at the end of query")
		}
		return nil
	default:
		return fmt.Errorf("multiple statements not allowed in read-only mode")
	}
}

func firstWord(sql string) string {
	parts := strings.Fields(sql)
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return parts[0]
}
