package remote

import (
	"bytes"
	"encoding/json"

	"github.com/mailtmpl/cli/internal/model"
)

// Shape classifies the body of a write response.
type Shape int

const (
	// Unrecognized bodies are neither a template nor an error report.
	Unrecognized Shape = iota
	// Recognized bodies describe one or more templates.
	Recognized
	// ErrorShaped bodies carry an error, code or message field.
	ErrorShaped
)

func (s Shape) String() string {
	switch s {
	case Recognized:
		return "recognized"
	case ErrorShaped:
		return "error"
	default:
		return "unrecognized"
	}
}

// Parsed is the outcome of classifying a write response.
type Parsed struct {
	Shape     Shape
	Templates []model.Template
}

// ParseWriteResponse classifies body. An empty or null body confirms the
// request payload. An object is recognized when it has an id or templateType field;
// an array when its first element is. Any object carrying error, code or
// message is error-shaped whatever the HTTP status was.
func ParseWriteResponse(body []byte, payload []model.Template) Parsed {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Parsed{Shape: Recognized, Templates: cloneTemplates(payload)}
	}

	switch trimmed[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return Parsed{Shape: Unrecognized}
		}
		if isErrorShaped(fields) {
			return Parsed{Shape: ErrorShaped}
		}
		if !isTemplateShaped(fields) {
			return Parsed{Shape: Unrecognized}
		}
		var t model.Template
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return Parsed{Shape: Unrecognized}
		}
		return Parsed{Shape: Recognized, Templates: []model.Template{merge(first(payload), t)}}

	case '[':
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return Parsed{Shape: Unrecognized}
		}
		if isErrorShaped(items[0]) {
			return Parsed{Shape: ErrorShaped}
		}
		if !isTemplateShaped(items[0]) {
			return Parsed{Shape: Unrecognized}
		}
		var ts []model.Template
		if err := json.Unmarshal(trimmed, &ts); err != nil {
			return Parsed{Shape: Unrecognized}
		}
		for i := range ts {
			if i < len(payload) {
				ts[i] = merge(payload[i], ts[i])
			}
		}
		return Parsed{Shape: Recognized, Templates: ts}
	}

	return Parsed{Shape: Unrecognized}
}

// ParseListResponse decodes a listing body, which must be a JSON array.
func ParseListResponse(body []byte) ([]model.Template, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var ts []model.Template
	if err := json.Unmarshal(trimmed, &ts); err != nil {
		return nil, false
	}
	if ts == nil {
		ts = []model.Template{}
	}
	return ts, true
}

func isErrorShaped(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"error", "code", "message"} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func isTemplateShaped(fields map[string]json.RawMessage) bool {
	_, hasID := fields["id"]
	_, hasType := fields["templateType"]
	return hasID || hasType
}

// merge fills fields the server left out of got with the values that were sent.
func merge(sent, got model.Template) model.Template {
	if got.TemplateType == "" {
		got.TemplateType = sent.TemplateType
	}
	if got.LanguageTag == "" {
		got.LanguageTag = sent.LanguageTag
	}
	if got.ID == "" {
		got.ID = sent.ID
	}
	if got.Details == nil && sent.Details != nil {
		d := *sent.Details
		got.Details = &d
	}
	return got
}

func first(ts []model.Template) model.Template {
	if len(ts) == 0 {
		return model.Template{}
	}
	return ts[0]
}

func cloneTemplates(ts []model.Template) []model.Template {
	out := make([]model.Template, len(ts))
	for i, t := range ts {
		if t.Details != nil {
			d := *t.Details
			t.Details = &d
		}
		out[i] = t
	}
	return out
}
