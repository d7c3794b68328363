package toon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/toonlabs/toondb/pkg/core/record"
)

// Decode разбирает текст TOON обратно в RowSet.
// Типы восстанавливаются из представления: null, true/false, числа,
// строки (в кавычках или без).
func Decode(text string) (*record.RowSet, error) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return &record.RowSet{}, nil
	}

	lines := strings.Split(text, "\n")

	count, columns, err := parseHeader(lines[0])
	if err != nil {
		return nil, err
	}

	rs := record.NewRowSet(columns...)

	dataLines := lines[1:]
	if len(dataLines) != count {
		return nil, fmt.Errorf("header declares %d rows, found %d data lines", count, len(dataLines))
	}

	for i, line := range dataLines {
		values, err := parseRow(strings.TrimPrefix(line, indent))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if len(values) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i+1, len(values), len(columns))
		}
		rs.Rows = append(rs.Rows, values)
	}

	return rs, nil
}

// parseHeader разбирает строку вида "[2]{name,age}:" или "[0]:"
func parseHeader(line string) (count int, columns []string, err error) {
	line = strings.TrimSpace(line)

	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, ":") {
		return 0, nil, fmt.Errorf("malformed header: %q", line)
	}

	close := strings.IndexByte(line, ']')
	if close < 0 {
		return 0, nil, fmt.Errorf("malformed header: %q", line)
	}

	count, err = strconv.Atoi(line[1:close])
	if err != nil || count < 0 {
		return 0, nil, fmt.Errorf("invalid row count in header: %q", line)
	}

	rest := line[close+1 : len(line)-1]
	if rest == "" {
		if count != 0 {
			return 0, nil, fmt.Errorf("header declares %d rows but no columns", count)
		}
		return 0, nil, nil
	}

	if !strings.HasPrefix(rest, "{") || !strings.HasSuffix(rest, "}") {
		return 0, nil, fmt.Errorf("malformed column list in header: %q", line)
	}

	columns, err = parseColumnList(rest[1 : len(rest)-1])
	if err != nil {
		return 0, nil, fmt.Errorf("malformed header %q: %w", line, err)
	}

	return count, columns, nil
}

// parseColumnList разбирает имена колонок заголовка с учетом кавычек:
// имя в кавычках берется дословно, без кавычек - обрезается по пробелам
func parseColumnList(s string) ([]string, error) {
	var columns []string
	var cell strings.Builder
	inQuotes := false
	quoted := false
	escaped := false

	flush := func() error {
		name := cell.String()
		cell.Reset()
		if !quoted {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("empty column name")
			}
		}
		columns = append(columns, name)
		quoted = false
		return nil
	}

	for _, r := range s {
		switch {
		case escaped:
			switch r {
			case 'n':
				cell.WriteByte('\n')
			case 'r':
				cell.WriteByte('\r')
			case 't':
				cell.WriteByte('\t')
			case '"', '\\':
				cell.WriteRune(r)
			default:
				return nil, fmt.Errorf("unknown escape sequence \\%c", r)
			}
			escaped = false

		case inQuotes && r == '\\':
			escaped = true

		case r == '"':
			if inQuotes {
				inQuotes = false
			} else if cell.Len() == 0 {
				inQuotes = true
				quoted = true
			} else {
				return nil, fmt.Errorf("unexpected quote in column name")
			}

		case r == ',' && !inQuotes:
			if err := flush(); err != nil {
				return nil, err
			}

		default:
			cell.WriteRune(r)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted column name")
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return columns, nil
}

// parseRow разбивает строку данных на значения с учетом кавычек
func parseRow(line string) ([]any, error) {
	var values []any
	var cell strings.Builder
	inQuotes := false
	quoted := false
	escaped := false

	flush := func() error {
		raw := cell.String()
		cell.Reset()
		val, err := decodeValue(raw, quoted)
		if err != nil {
			return err
		}
		values = append(values, val)
		quoted = false
		return nil
	}

	for _, r := range line {
		switch {
		case escaped:
			switch r {
			case 'n':
				cell.WriteByte('\n')
			case 'r':
				cell.WriteByte('\r')
			case 't':
				cell.WriteByte('\t')
			case '"', '\\':
				cell.WriteRune(r)
			default:
				return nil, fmt.Errorf("unknown escape sequence \\%c", r)
			}
			escaped = false

		case inQuotes && r == '\\':
			escaped = true

		case r == '"':
			if inQuotes {
				inQuotes = false
			} else if cell.Len() == 0 {
				inQuotes = true
				quoted = true
			} else {
				return nil, fmt.Errorf("unexpected quote inside unquoted value")
			}

		case r == ',' && !inQuotes:
			if err := flush(); err != nil {
				return nil, err
			}

		default:
			cell.WriteRune(r)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted value")
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return values, nil
}

// decodeValue восстанавливает тип значения из текстового представления.
// Значения в кавычках - всегда строки.
func decodeValue(raw string, quoted bool) (any, error) {
	if quoted {
		return raw, nil
	}

	raw = strings.TrimSpace(raw)

	switch raw {
	case "null", "":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}

	return raw, nil
}
