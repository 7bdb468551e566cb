package chatapi

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the JSON kind of a cell value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindJSON // nested object or array
)

// Value is one cell as the service sent it.
// Text is the display form: strings unquoted, numbers and nested JSON in their
// literal wire text, booleans as true/false, null as "".
type Value struct {
	Kind Kind
	Text string
}

func (v Value) String() string { return v.Text }

// Cell pairs a column name with its value.
type Cell struct {
	Column string
	Value  Value
}

// ResultRow is one record of a tabular reply. Cells keep the key order of the
// JSON object they were decoded from.
type ResultRow struct {
	Cells []Cell
}

// Len returns the number of cells.
func (r ResultRow) Len() int { return len(r.Cells) }

// Columns returns the column names in key order.
func (r ResultRow) Columns() []string {
	cols := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		cols[i] = c.Column
	}
	return cols
}

// Strings returns the display text of every value in key order.
func (r ResultRow) Strings() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Value.Text
	}
	return out
}

// Get looks up a value by column name.
func (r ResultRow) Get(column string) (Value, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Value, true
		}
	}
	return Value{}, false
}

func valueOf(res gjson.Result) Value {
	switch res.Type {
	case gjson.Null:
		return Value{Kind: KindNull}
	case gjson.False, gjson.True:
		return Value{Kind: KindBool, Text: res.Raw}
	case gjson.Number:
		return Value{Kind: KindNumber, Text: res.Raw}
	case gjson.String:
		return Value{Kind: KindString, Text: res.Str}
	default:
		return Value{Kind: KindJSON, Text: strings.TrimSpace(res.Raw)}
	}
}

// rowOf decodes one JSON object, keeping document key order. A repeated key
// keeps the position of its first occurrence and the value of its last.
func rowOf(obj gjson.Result) ResultRow {
	var row ResultRow
	index := make(map[string]int)
	obj.ForEach(func(key, value gjson.Result) bool {
		col := key.String()
		if i, ok := index[col]; ok {
			row.Cells[i].Value = valueOf(value)
			return true
		}
		index[col] = len(row.Cells)
		row.Cells = append(row.Cells, Cell{Column: col, Value: valueOf(value)})
		return true
	})
	return row
}

// sameColumns reports whether two rows carry the same key set.
func sameColumns(a, b ResultRow) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, c := range b.Cells {
		if _, ok := a.Get(c.Column); !ok {
			return false
		}
	}
	return true
}
