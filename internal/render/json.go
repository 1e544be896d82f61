package render

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"taotie/internal/domain"
)

// Payload is the JSON form of a table.
type Payload struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewPayload converts t into JSON-safe values. Numbers, booleans, strings,
// and nulls pass through; other values use their text rendering.
func NewPayload(t domain.Table) Payload {
	values := t.Values()
	p := Payload{Columns: t.Header(), Rows: make([][]any, len(values))}
	for i, row := range values {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = jsonValue(v)
		}
		p.Rows[i] = out
	}
	return p
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return FormatFloat(x)
		}
		return x
	case float32:
		return jsonValue(float64(x))
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return FormatValue(v)
	}
}

// JSON writes t as an indented JSON payload.
func JSON(w io.Writer, t domain.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewPayload(t))
}
