package remote

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mailtmpl/cli/internal/model"
)

// Outcome tags the result of one write strategy.
type Outcome int

const (
	// Success ends the strategy chain with a confirmed template.
	Success Outcome = iota
	// Retryable means the server does not support this request shape; the
	// next strategy is tried.
	Retryable
	// Fatal ends the chain immediately with an error.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Strategy is one request shape for writing a single template with a known id.
type Strategy struct {
	Name   string
	Method string
	// Build returns the request path and body for writing t under id.
	Build func(basePath, id string, t model.Template) (path string, body any)
}

// batchBody is the wire body of the bulk write endpoint.
type batchBody struct {
	Templates []model.Template `json:"templates"`
}

// UpdateStrategies is the ordered fallback chain for updating one template.
// Deployments differ in which single-resource write verbs they expose.
var UpdateStrategies = []Strategy{
	{
		Name:   "batch-with-id",
		Method: http.MethodPut,
		Build: func(basePath, id string, t model.Template) (string, any) {
			t.ID = id
			return basePath, batchBody{Templates: []model.Template{t}}
		},
	},
	{
		Name:   "item-put",
		Method: http.MethodPut,
		Build: func(basePath, id string, t model.Template) (string, any) {
			t.ID = ""
			return basePath + "/" + id, t
		},
	},
	{
		Name:   "item-patch",
		Method: http.MethodPatch,
		Build: func(basePath, id string, t model.Template) (string, any) {
			t.ID = ""
			return basePath + "/" + id, t
		},
	},
}

// Attempt records one request made while walking a strategy chain.
type Attempt struct {
	Strategy string
	Method   string
	URL      string
	Status   int
	Body     string
	Outcome  Outcome
	Err      error
}

func (a Attempt) String() string {
	status := "no response"
	if a.Status != 0 {
		status = fmt.Sprintf("HTTP %d", a.Status)
	}
	line := fmt.Sprintf("%s %s [%s] -> %s", a.Method, a.URL, a.Strategy, status)
	if a.Body != "" {
		line += ": " + truncate(a.Body)
	} else if a.Err != nil {
		line += ": " + a.Err.Error()
	}
	return line
}

// WriteError reports a failed single-template write together with every
// request that was attempted.
type WriteError struct {
	// Exhausted is set when every strategy was tried and none succeeded.
	Exhausted bool
	Attempts  []Attempt
}

func (e *WriteError) Error() string {
	var sb strings.Builder
	if e.Exhausted {
		fmt.Fprintf(&sb, "all %d write strategies failed", len(e.Attempts))
	} else if n := len(e.Attempts); n > 0 {
		last := e.Attempts[n-1]
		fmt.Fprintf(&sb, "write rejected by %s %s", last.Method, last.URL)
	} else {
		sb.WriteString("write failed")
	}
	for _, a := range e.Attempts {
		sb.WriteString("\n  - ")
		sb.WriteString(a.String())
	}
	return sb.String()
}

// Unwrap exposes the error of the final attempt.
func (e *WriteError) Unwrap() error {
	if n := len(e.Attempts); n > 0 {
		return e.Attempts[n-1].Err
	}
	return nil
}

// isUnsupported reports whether status means "this request shape is not
// available here" rather than "the request was wrong".
func isUnsupported(status int) bool {
	return status == http.StatusNotFound || status == http.StatusMethodNotAllowed
}
