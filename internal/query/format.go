package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MaxValueLength  = 300
	truncateSuffix  = "..."
	timestampLayout = "2006-01-02 15:04:05"
)

// FormatRows renders rows as a list of tuples, e.g. [('Excavator', 12), ('Drill', 9)].
// An empty result renders as the empty string.
func FormatRows(rows [][]any) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatValue(value))
		}
		if len(row) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case string:
		return quoteString(Truncate(typed, MaxValueLength))
	case []byte:
		return quoteString(Truncate(string(typed), MaxValueLength))
	case int:
		return strconv.Itoa(typed)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", typed)
	case float32:
		return formatFloat(float64(typed))
	case float64:
		return formatFloat(typed)
	case time.Time:
		return quoteString(typed.Format(timestampLayout))
	case fmt.Stringer:
		return quoteString(Truncate(typed.String(), MaxValueLength))
	default:
		return quoteString(Truncate(fmt.Sprint(typed), MaxValueLength))
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// quoteString prefers single quotes and switches to double quotes when the
// value contains only single quotes.
func quoteString(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// Truncate shortens s to at most n runes, cutting at the last word boundary
// and appending "...".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	cut := n - len(truncateSuffix)
	if cut < 0 {
		cut = 0
	}
	head := string(runes[:cut])
	if idx := strings.LastIndex(head, " "); idx > 0 {
		head = head[:idx]
	}
	return head + truncateSuffix
}
