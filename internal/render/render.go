// Package render formats tables for the terminal and for JSON clients.
package render

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"

	"taotie/internal/domain"
)

// Format renders t as a bordered text table:
//
//	+----------+---------+
//	| describe | int_col |
//	+----------+---------+
//	| max      | 5.0     |
//	+----------+---------+
func Format(t domain.Table) string {
	header := t.Header()
	values := t.Values()

	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(header))
		for j := range header {
			if j < len(row) {
				cells[j] = cellText(row[j])
			}
		}
		rows[i] = cells
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(cellText(h))
	}
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	var sb strings.Builder
	border := borderLine(widths)
	sb.WriteString(border)
	writeRow(&sb, widths, header)
	sb.WriteString(border)
	for _, row := range rows {
		writeRow(&sb, widths, row)
	}
	if len(rows) > 0 {
		sb.WriteString(border)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func borderLine(widths []int) string {
	var sb strings.Builder
	sb.WriteByte('+')
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w+2))
		sb.WriteByte('+')
	}
	sb.WriteByte('\n')
	return sb.String()
}

func writeRow(sb *strings.Builder, widths []int, cells []string) {
	sb.WriteByte('|')
	for i, w := range widths {
		c := cellText(cells[i])
		sb.WriteByte(' ')
		sb.WriteString(c)
		sb.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(c)+1))
		sb.WriteByte('|')
	}
	sb.WriteByte('\n')
}

// cellText formats a value and flattens line breaks so rows stay on one line.
func cellText(v any) string {
	s := FormatValue(v)
	if strings.ContainsAny(s, "\r\n\t") {
		s = strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(s)
	}
	return s
}

// FormatFloat renders f with the fewest digits that round-trip, always
// keeping a fractional part: 3 → "3.0", 1.5811388300841898 unchanged.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatValue renders one cell value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case float64:
		return FormatFloat(x)
	case float32:
		return FormatFloat(float64(x))
	case []byte:
		return `\x` + hex.EncodeToString(x)
	case time.Time:
		return formatTime(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatNested(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + formatNested(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// formatNested quotes strings inside lists and structs.
func formatNested(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return FormatValue(v)
}

// formatTime prints dates without a clock and timestamps without a
// trailing zero fraction. Zones other than UTC are kept.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format(time.DateOnly)
	}
	if t.Location() == time.UTC {
		return t.Format("2006-01-02 15:04:05.999999")
	}
	return t.Format("2006-01-02 15:04:05.999999-07:00")
}
