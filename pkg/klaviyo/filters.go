package klaviyo

import (
	"net/url"
	"strings"
	"time"
)

// Filter is one API filter condition.
//
// Operators holds one operator, or several to nest them:
// ["any", "equals"] renders as any(equals(field,value)).
type Filter struct {
	Operators []string `json:"operators"`

	Field string `json:"field"`

	// Value is inserted verbatim; quote string literals.
	Value string `json:"value"`
}

// Equals returns an equals condition.
func Equals(field, value string) Filter {
	return Filter{Operators: []string{"equals"}, Field: field, Value: value}
}

// Quote wraps s in double quotes for use as a string filter value.
func Quote(s string) string {
	return `"` + s + `"`
}

// DatetimeRange returns the [from, to) conditions on datetime.
func DatetimeRange(from, to time.Time) []Filter {
	return []Filter{
		{Operators: []string{"greater-or-equal"}, Field: "datetime", Value: from.Format(time.RFC3339)},
		{Operators: []string{"less-than"}, Field: "datetime", Value: to.Format(time.RFC3339)},
	}
}

// String renders f in the API's filter syntax.
func (f Filter) String() string {
	var b strings.Builder
	for _, op := range f.Operators {
		b.WriteString(op)
		b.WriteByte('(')
	}
	if len(f.Operators) == 0 {
		b.WriteString("equals(")
	}
	b.WriteString(f.Field)
	b.WriteByte(',')
	b.WriteString(f.Value)
	closers := len(f.Operators)
	if closers == 0 {
		closers = 1
	}
	b.WriteString(strings.Repeat(")", closers))
	return b.String()
}

// TranslateFilters renders filters as a comma-separated filter parameter.
func TranslateFilters(filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

// CursorFromURL returns the page[cursor] parameter of a links.next URL, or
// "" if there is none.
func CursorFromURL(next string) string {
	if next == "" || next == "null" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("page[cursor]")
}
