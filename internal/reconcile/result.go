package reconcile

import (
	"fmt"
	"strings"

	"github.com/mailtmpl/cli/internal/model"
)

// Action is what a sync run does with one local template.
type Action string

const (
	// ActionCreate writes a template the authoritative index does not contain.
	ActionCreate Action = "create"
	// ActionUpdate overwrites a template the authoritative index contains.
	ActionUpdate Action = "update"
	// ActionUpsert writes a template without knowing whether it exists,
	// used when the remote listing is unavailable.
	ActionUpsert Action = "upsert"
)

// Actions lists every action in display order.
var Actions = []Action{ActionCreate, ActionUpdate, ActionUpsert}

// Item is the outcome of one local template in a sync run.
type Item struct {
	Action Action
	Key    string
	// Method is the HTTP method that confirmed the write. Empty on dry runs.
	Method string
	// Strategy names the request shape that confirmed the write.
	Strategy string
	Local    model.Template
	// Existing is the remote template matched before writing, if any.
	Existing *model.Template
	// Remote is the confirmed remote state after the write. On dry runs it is
	// the matched remote template, if any.
	Remote *model.Template
	DryRun bool
}

// Report is the ordered outcome of a sync run.
type Report struct {
	Items []Item
	// Authoritative is set when the remote listing was available.
	Authoritative bool
	DryRun        bool
	// Failures is only populated in continue-on-error mode.
	Failures []Failure
}

// Counts returns the number of items per action.
func (r *Report) Counts() map[Action]int {
	counts := make(map[Action]int, len(Actions))
	for _, item := range r.Items {
		counts[item.Action]++
	}
	return counts
}

// Filter returns items with the given action.
func (r *Report) Filter(action Action) []Item {
	var out []Item
	for _, item := range r.Items {
		if item.Action == action {
			out = append(out, item)
		}
	}
	return out
}

// Summary renders a one-line count per action, e.g. "Synced 3 templates: 1 created, 2 updated".
func (r *Report) Summary() string {
	var sb strings.Builder
	if r.DryRun {
		fmt.Fprintf(&sb, "Dry run: %d template(s) would be written", len(r.Items))
	} else {
		fmt.Fprintf(&sb, "Synced %d template(s)", len(r.Items))
	}

	counts := r.Counts()
	var parts []string
	for _, a := range Actions {
		if counts[a] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[a], pastTense(a)))
		}
	}
	if len(parts) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&sb, "; %d failed", len(r.Failures))
	}
	if !r.Authoritative {
		sb.WriteString(" (remote listing unavailable, all writes are upserts)")
	}
	return sb.String()
}

func pastTense(a Action) string {
	switch a {
	case ActionCreate:
		return "created"
	case ActionUpdate:
		return "updated"
	case ActionUpsert:
		return "upserted"
	default:
		return string(a)
	}
}

// Failure is an item that could not be written.
type Failure struct {
	// Index is the 1-based position of the template in load order.
	Index  int
	Key    string
	Action Action
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("item %d (%s, %s) failed: %v", f.Index, f.Key, f.Action, f.Err)
}

// ItemError aborts a run at the first failed item.
type ItemError struct {
	Failure
	// Applied counts the items written before the failure. Those writes are
	// not rolled back.
	Applied int
	Total   int
	// Items are the writes confirmed before the failure, in load order.
	Items []Item
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s\n%d of %d item(s) were applied before the failure; re-running sync is safe",
		e.Failure.Error(), e.Applied, e.Total)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// PartialError is returned in continue-on-error mode when any item failed.
type PartialError struct {
	Failures []Failure
	Total    int
}

func (e *PartialError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d item(s) failed", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		sb.WriteString("\n")
		sb.WriteString(f.Error())
	}
	return sb.String()
}

// Unwrap exposes every item error.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
