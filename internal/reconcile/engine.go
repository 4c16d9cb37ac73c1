// Package reconcile pushes local email templates to the remote collection.
//
// A run lists the remote templates once, matches every local template to the
// remote index by its type::language key, and then writes the templates one at
// a time in load order. Remote templates with no local counterpart are never
// touched. When the listing endpoint is unavailable the index is unknown and
// every write is an upsert.
//
// Application stops at the first failed item unless Options.ContinueOnError is
// set. Writes already made are kept; running sync again converges.
package reconcile

import (
	"context"

	"github.com/mailtmpl/cli/internal/interfaces"
	"github.com/mailtmpl/cli/internal/logging"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/rs/zerolog"
)

// Options configure a sync run.
type Options struct {
	// DryRun computes the actions without writing anything.
	DryRun bool
	// ContinueOnError attempts every item and reports all failures together
	// instead of stopping at the first one.
	ContinueOnError bool
}

// Step is one planned action.
type Step struct {
	Action   Action
	Key      string
	Local    model.Template
	Existing *model.Template
}

// Plan is the set of actions for a list of local templates.
type Plan struct {
	Authoritative bool
	Steps         []Step
}

// Engine reconciles local templates against a gateway.
type Engine struct {
	gateway interfaces.TemplateGateway
	logger  zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(gateway interfaces.TemplateGateway, logger zerolog.Logger) *Engine {
	return &Engine{gateway: gateway, logger: logger}
}

// index maps keys to remote templates. A nil index means the remote state is unknown.
type index map[string]model.Template

func newIndex(remote []model.Template, authoritative bool) index {
	if !authoritative {
		return nil
	}
	idx := make(index, len(remote))
	for _, t := range remote {
		idx[t.Key()] = t
	}
	return idx
}

// classify picks the action for key. The returned template is the match, if any.
func (idx index) classify(key string) (Action, *model.Template) {
	if idx == nil {
		return ActionUpsert, nil
	}
	if existing, ok := idx[key]; ok {
		return ActionUpdate, &existing
	}
	return ActionCreate, nil
}

// BuildPlan computes actions without any I/O.
func BuildPlan(locals, remote []model.Template, authoritative bool) *Plan {
	idx := newIndex(remote, authoritative)
	plan := &Plan{Authoritative: authoritative, Steps: make([]Step, 0, len(locals))}
	for _, local := range locals {
		key := local.Key()
		action, existing := idx.classify(key)
		plan.Steps = append(plan.Steps, Step{Action: action, Key: key, Local: local, Existing: existing})
	}
	return plan
}

// Plan lists the remote templates and computes the actions for locals.
func (e *Engine) Plan(ctx context.Context, locals []model.Template) (*Plan, error) {
	remote, ok, err := e.gateway.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildPlan(locals, remote, ok), nil
}

// Sync reconciles locals with the remote collection. In apply mode the first
// failure returns an *ItemError and no report; with ContinueOnError a report
// is returned together with a *PartialError when any item failed.
func (e *Engine) Sync(ctx context.Context, locals []model.Template, opts Options) (*Report, error) {
	if opts.DryRun {
		plan, err := e.Plan(ctx, locals)
		if err != nil {
			return nil, err
		}
		e.logger.Debug().
			Bool("authoritative", plan.Authoritative).
			Int("local", len(locals)).
			Msg("starting dry run")
		return e.dryRun(plan), nil
	}

	remote, authoritative, err := e.gateway.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Bool("authoritative", authoritative).
		Int("remote", len(remote)).
		Int("local", len(locals)).
		Msg("starting sync")

	return e.apply(ctx, locals, newIndex(remote, authoritative), authoritative, opts)
}

func (e *Engine) dryRun(plan *Plan) *Report {
	report := &Report{Authoritative: plan.Authoritative, DryRun: true, Items: make([]Item, 0, len(plan.Steps))}
	for _, step := range plan.Steps {
		report.Items = append(report.Items, Item{
			Action:   step.Action,
			Key:      step.Key,
			Local:    step.Local,
			Existing: step.Existing,
			Remote:   step.Existing,
			DryRun:   true,
		})
		e.logger.Debug().Str(logging.KeyKey, step.Key).Str(logging.KeyAction, string(step.Action)).Msg("planned")
	}
	return report
}

func (e *Engine) apply(ctx context.Context, locals []model.Template, idx index, authoritative bool, opts Options) (*Report, error) {
	report := &Report{Authoritative: authoritative, Items: make([]Item, 0, len(locals))}

	for i, local := range locals {
		key := local.Key()
		// Classified against the live index so a key written earlier in this
		// run is seen as existing.
		action, existing := idx.classify(key)

		// A cancelled run stops before the next write, in either mode.
		var item *Item
		err := ctx.Err()
		if err == nil {
			item, err = e.write(ctx, local, action, existing)
		}
		if err != nil {
			failure := Failure{Index: i + 1, Key: key, Action: action, Err: err}
			e.logger.Debug().Err(err).Str(logging.KeyKey, key).Int("index", i+1).Msg("write failed")
			if !opts.ContinueOnError {
				return nil, &ItemError{Failure: failure, Applied: len(report.Items), Total: len(locals), Items: report.Items}
			}
			report.Failures = append(report.Failures, failure)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if idx != nil && item.Remote != nil && item.Remote.ID != "" {
			idx[key] = *item.Remote
		}
		report.Items = append(report.Items, *item)

		e.logger.Debug().
			Str(logging.KeyKey, key).
			Str(logging.KeyAction, string(action)).
			Str(logging.KeyMethod, item.Method).
			Str(logging.KeyStrategy, item.Strategy).
			Msg("applied")
	}

	if len(report.Failures) > 0 {
		return report, &PartialError{Failures: report.Failures, Total: len(locals)}
	}
	return report, nil
}

func (e *Engine) write(ctx context.Context, local model.Template, action Action, existing *model.Template) (*Item, error) {
	payload := local
	payload.ID = ""

	var (
		method, strategy string
		written          model.Template
	)
	if existing != nil && existing.ID != "" {
		result, err := e.gateway.UpdateOne(ctx, existing.ID, payload)
		if err != nil {
			return nil, err
		}
		method, strategy, written = result.Method, result.Strategy, result.Template
	} else {
		result, err := e.gateway.CreateOne(ctx, payload)
		if err != nil {
			return nil, err
		}
		method, strategy, written = result.Method, result.Strategy, result.Template
	}

	return &Item{
		Action:   action,
		Key:      local.Key(),
		Method:   method,
		Strategy: strategy,
		Local:    local,
		Existing: existing,
		Remote:   &written,
	}, nil
}
