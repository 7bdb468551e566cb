package chatapi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(s string) Value { return Value{Kind: KindNumber, Text: s} }
func str(s string) Value { return Value{Kind: KindString, Text: s} }

func TestDecode_Tabular(t *testing.T) {
	reply := Decode([]byte(`{"results": [{"a":1,"b":2},{"a":3,"b":4}]}`))

	tab, ok := reply.(Tabular)
	require.True(t, ok, "expected Tabular, got %T", reply)

	want := []ResultRow{
		{Cells: []Cell{{"a", num("1")}, {"b", num("2")}}},
		{Cells: []Cell{{"a", num("3")}, {"b", num("4")}}},
	}
	if diff := cmp.Diff(want, tab.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b"}, tab.Columns())
	assert.True(t, tab.Consistent())
}

func TestDecode_KeepsWireKeyOrder(t *testing.T) {
	reply := Decode([]byte(`{"query":"SELECT name, id FROM products","results":[{"name":"Mac","id":7,"brand":"Apple"}]}`))

	tab, ok := reply.(Tabular)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "id", "brand"}, tab.Columns(), "columns must follow the wire order, not sorted order")
	assert.Equal(t, "SELECT name, id FROM products", tab.Query)
}

func TestDecode_RepeatedKeyKeepsLastValue(t *testing.T) {
	reply := Decode([]byte(`{"results":[{"a":1,"b":2,"a":3}]}`))

	tab, ok := reply.(Tabular)
	require.True(t, ok)
	want := ResultRow{Cells: []Cell{{"a", num("3")}, {"b", num("2")}}}
	if diff := cmp.Diff(want, tab.Rows[0]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_ValueCoercion(t *testing.T) {
	reply := Decode([]byte(`{"results":[{"s":"text","n":12.50,"t":true,"f":false,"z":null,"o":{"k":[1,2]},"arr":[1, "x"]}]}`))

	tab, ok := reply.(Tabular)
	require.True(t, ok)

	assert.Equal(t, []string{"text", "12.50", "true", "false", "", `{"k":[1,2]}`, `[1, "x"]`}, tab.Rows[0].Strings())

	v, found := tab.Rows[0].Get("z")
	require.True(t, found)
	assert.Equal(t, KindNull, v.Kind)

	v, found = tab.Rows[0].Get("o")
	require.True(t, found)
	assert.Equal(t, KindJSON, v.Kind)

	_, found = tab.Rows[0].Get("missing")
	assert.False(t, found)
}

func TestDecode_Textual(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Textual
	}{
		{"text only", `{"text":"Hello there"}`, Textual{Text: "Hello there"}},
		{"empty results with text", `{"results":[],"text":"nothing matched"}`, Textual{Text: "nothing matched"}},
		{"empty results no text", `{"results":[]}`, Textual{Text: FallbackText}},
		{"empty text", `{"text":""}`, Textual{Text: FallbackText}},
		{"numeric text", `{"text":42}`, Textual{Text: "42"}},
		{"zero text", `{"text":0}`, Textual{Text: FallbackText}},
		{"boolean text", `{"text":true}`, Textual{Text: "true"}},
		{"false text", `{"text":false}`, Textual{Text: FallbackText}},
		{"null text", `{"text":null}`, Textual{Text: FallbackText}},
		{"object text", `{"text":{"k":1}}`, Textual{Text: `{"k":1}`}},
		{"results not an array", `{"results":"rows"}`, Textual{Text: FallbackText}},
		{"results null", `{"results":null}`, Textual{Text: FallbackText}},
		{"service error", `{"error":"Invalid model name. Please select a valid model."}`,
			Textual{Text: FallbackText, ServiceError: "Invalid model name. Please select a valid model."}},
		{"sql error inside results", `{"query":"SELEC","results":{"error":"syntax error"}}`,
			Textual{Text: FallbackText, ServiceError: "syntax error"}},
		{"top level array", `[{"a":1}]`, Textual{Text: FallbackText}},
		{"top level string", `"hi"`, Textual{Text: FallbackText}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decode([]byte(tc.body))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, body := range []string{``, `   `, `not json`, `{"results": [`, `null`} {
		got := Decode([]byte(body))
		m, ok := got.(Malformed)
		if assert.True(t, ok, "body %q: expected Malformed, got %T", body, got) {
			assert.True(t, errors.Is(m.Err, ErrMalformedReply))
		}
	}
}

func TestTabular_Consistent(t *testing.T) {
	tab := Decode([]byte(`{"results":[{"a":1,"b":2},{"b":3,"a":4}]}`)).(Tabular)
	assert.True(t, tab.Consistent(), "same key set in a different order is still consistent")

	tab = Decode([]byte(`{"results":[{"a":1,"b":2},{"a":3,"c":4}]}`)).(Tabular)
	assert.False(t, tab.Consistent())

	tab = Decode([]byte(`{"results":[{"a":1},{"a":3,"b":4}]}`)).(Tabular)
	assert.False(t, tab.Consistent())
}

func TestResolve(t *testing.T) {
	rows := []ResultRow{{Cells: []Cell{{"x", str("a")}}}}

	out := Resolve(Tabular{Rows: rows, Query: "SELECT x"}, nil)
	assert.True(t, out.IsTable())
	assert.Empty(t, out.BotText)
	assert.Equal(t, "SELECT x", out.Query)

	out = Resolve(Textual{Text: "hi"}, nil)
	assert.False(t, out.IsTable())
	assert.Equal(t, "hi", out.BotText)

	out = Resolve(Malformed{Err: ErrMalformedReply}, nil)
	assert.Equal(t, FailureText, out.BotText)

	out = Resolve(nil, ErrRequestFailed)
	assert.Equal(t, FailureText, out.BotText)

	out = Resolve(Tabular{}, nil)
	assert.Equal(t, FallbackText, out.BotText)

	out = Resolve(nil, nil)
	assert.Equal(t, FailureText, out.BotText)
}
