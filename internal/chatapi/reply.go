package chatapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// FallbackText is shown when a well-formed reply has neither rows nor text.
	FallbackText = "No structured data found"
	// FailureText is shown for every failed exchange, whatever the cause.
	FailureText = "Sorry, something went wrong."
)

// ErrMalformedReply marks a response body that is not JSON, or is JSON null.
var ErrMalformedReply = errors.New("malformed reply")

// Reply is the decoded service response: Tabular, Textual or Malformed.
type Reply interface {
	isReply()
}

// Tabular carries a non-empty result set.
type Tabular struct {
	Rows []ResultRow
	// Query is the SQL the service generated, when it echoes one.
	Query string
}

// Textual is any well-formed reply without a non-empty results array.
type Textual struct {
	Text string
	// ServiceError is the service's "error" field, if any. It is never shown.
	ServiceError string
}

// Malformed is a body that could not be decoded.
type Malformed struct {
	Err error
}

func (Tabular) isReply()   {}
func (Textual) isReply()   {}
func (Malformed) isReply() {}

// Columns returns the header: the first row's keys in order.
func (t Tabular) Columns() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0].Columns()
}

// Consistent reports whether every row shares the first row's key set.
// Rendering is positional either way; this only feeds a warning.
func (t Tabular) Consistent() bool {
	for i := 1; i < len(t.Rows); i++ {
		if !sameColumns(t.Rows[0], t.Rows[i]) {
			return false
		}
	}
	return true
}

// Decode turns a raw response body into a Reply. It never fails: bodies that
// are not JSON, or are JSON null, come back as Malformed. Any other JSON value
// without a non-empty results array is Textual.
func Decode(body []byte) Reply {
	if !gjson.ValidBytes(body) {
		return Malformed{Err: fmt.Errorf("%w: invalid JSON", ErrMalformedReply)}
	}
	doc := gjson.ParseBytes(body)
	if doc.Type == gjson.Null {
		return Malformed{Err: fmt.Errorf("%w: null body", ErrMalformedReply)}
	}
	if !doc.IsObject() {
		return Textual{Text: FallbackText}
	}

	results := doc.Get("results")
	if results.IsArray() {
		items := results.Array()
		if len(items) > 0 {
			rows := make([]ResultRow, 0, len(items))
			for _, item := range items {
				rows = append(rows, rowOf(item))
			}
			return Tabular{Rows: rows, Query: doc.Get("query").String()}
		}
	}

	reply := Textual{Text: FallbackText}
	if text, ok := textOf(doc.Get("text")); ok {
		reply.Text = text
	}
	if e := doc.Get("error"); e.Exists() {
		reply.ServiceError = e.String()
	} else if e := results.Get("error"); results.IsObject() && e.Exists() {
		// A failed SQL execution comes back as results: {"error": "..."}.
		reply.ServiceError = e.String()
	}
	return reply
}

// textOf returns the display form of a "text" field when it carries a truthy
// value: a non-empty string, a non-zero number, true, or any object or array.
func textOf(res gjson.Result) (string, bool) {
	switch res.Type {
	case gjson.String:
		return res.Str, res.Str != ""
	case gjson.Number:
		return res.Raw, res.Num != 0
	case gjson.True:
		return "true", true
	case gjson.JSON:
		return strings.TrimSpace(res.Raw), true
	default:
		return "", false
	}
}

// Outcome is what the panel does with one finished exchange: either replace
// the table with Rows, or append BotText as a bot message. Never both.
type Outcome struct {
	Rows    []ResultRow
	Query   string
	BotText string
}

// IsTable reports whether the outcome replaces the table.
func (o Outcome) IsTable() bool { return len(o.Rows) > 0 }

// Resolve folds a reply and transport error into an Outcome. Transport errors,
// bad statuses and malformed bodies all collapse into FailureText.
func Resolve(reply Reply, err error) Outcome {
	if err != nil {
		return Outcome{BotText: FailureText}
	}
	switch r := reply.(type) {
	case Tabular:
		if len(r.Rows) == 0 {
			return Outcome{BotText: FallbackText}
		}
		return Outcome{Rows: r.Rows, Query: r.Query}
	case Textual:
		return Outcome{BotText: r.Text}
	default:
		return Outcome{BotText: FailureText}
	}
}
