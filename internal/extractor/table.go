package extractor

import (
	"regexp"
	"strings"
)

var separatorRe = regexp.MustCompile(`^[\s|:\-]+$`)

// Table is a markdown table found in converted document text
type Table struct {
	Headers []string
	Rows    [][]string
}

// ParseTables returns every pipe table in text, in document order.
// Rows are padded or cut to the header width.
func ParseTables(text string) []Table {
	var (
		tables []Table
		cur    *Table
	)
	flush := func() {
		if cur != nil && len(cur.Headers) > 0 {
			tables = append(tables, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			flush()
			continue
		}
		if separatorRe.MatchString(trimmed) {
			continue
		}
		cells := splitRow(trimmed)
		if cur == nil {
			cur = &Table{Headers: cells}
			continue
		}
		row := make([]string, len(cur.Headers))
		copy(row, cells)
		cur.Rows = append(cur.Rows, row)
	}
	flush()
	return tables
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = cleanText(p)
	}
	return cells
}

// Column returns the index of the first header matching one of the aliases, or -1.
// Matching is case-insensitive on whole header text.
func (t Table) Column(aliases ...string) int {
	for _, alias := range aliases {
		for i, h := range t.Headers {
			if strings.EqualFold(h, alias) {
				return i
			}
		}
	}
	return -1
}

// Cell returns row[col], or "" when col is -1
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
