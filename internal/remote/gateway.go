// Package remote talks to the email template collection of the management API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mailtmpl/cli/internal/logging"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/rs/zerolog"
)

// ErrUnrecognizedResponse is returned when a 2xx write response cannot be
// read as a template or list of templates.
var ErrUnrecognizedResponse = errors.New("unrecognized response body")

// ErrErrorResponse is returned when a 2xx response body reports an error.
var ErrErrorResponse = errors.New("response body reports an error")

// WriteResult is a confirmed single-template write.
type WriteResult struct {
	Template model.Template
	Method   string
	URL      string
	Strategy string
}

// Gateway exposes list and write primitives over the template collection.
type Gateway struct {
	client     Requester
	basePath   string
	strategies []Strategy
	logger     zerolog.Logger
}

// NewGateway creates a gateway for the collection at basePath, e.g. /api/email-templates.
func NewGateway(client Requester, basePath string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client:     client,
		basePath:   basePath,
		strategies: UpdateStrategies,
		logger:     logger,
	}
}

// ListAll fetches every template. ok is false, with a nil error, when the
// server answers 404 or 405: the listing endpoint is not available and the
// caller has no authoritative index.
func (g *Gateway) ListAll(ctx context.Context) ([]model.Template, bool, error) {
	resp, err := g.client.Get(ctx, g.basePath)
	if err != nil {
		if isUnsupported(StatusOf(err)) {
			g.logger.Debug().Int(logging.KeyStatus, StatusOf(err)).Msg("template listing not available")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("list templates: %w", err)
	}

	templates, ok := ParseListResponse(resp.Body)
	if !ok {
		return nil, false, fmt.Errorf("list templates: GET %s: expected a JSON array: %w", g.client.URL(g.basePath), ErrUnrecognizedResponse)
	}

	g.logger.Debug().Int(logging.KeyCount, len(templates)).Msg("listed remote templates")
	return templates, true, nil
}

// BulkUpsert writes every template in one request. The server creates or
// replaces each entry by its type and language. There is no partial success:
// a failed status or an unreadable body fails the whole batch.
func (g *Gateway) BulkUpsert(ctx context.Context, templates []model.Template) ([]model.Template, error) {
	payload := make([]model.Template, len(templates))
	for i, t := range templates {
		t.ID = ""
		payload[i] = t
	}

	url := g.client.URL(g.basePath)
	resp, err := g.client.Put(ctx, g.basePath, batchBody{Templates: payload})
	if err != nil {
		return nil, fmt.Errorf("bulk upsert of %d templates: %w", len(payload), err)
	}

	parsed := ParseWriteResponse(resp.Body, payload)
	switch parsed.Shape {
	case Recognized:
		return parsed.Templates, nil
	case ErrorShaped:
		return nil, fmt.Errorf("bulk upsert: PUT %s: HTTP %d: %s: %w", url, resp.Status, truncate(string(resp.Body)), ErrErrorResponse)
	default:
		return nil, fmt.Errorf("bulk upsert: PUT %s: HTTP %d: %s: %w", url, resp.Status, truncate(string(resp.Body)), ErrUnrecognizedResponse)
	}
}

// CreateOne writes a template that has no remote id yet, as a one-element batch.
func (g *Gateway) CreateOne(ctx context.Context, t model.Template) (*WriteResult, error) {
	written, err := g.BulkUpsert(ctx, []model.Template{t})
	if err != nil {
		return nil, err
	}
	return &WriteResult{
		Template: written[0],
		Method:   http.MethodPut,
		URL:      g.client.URL(g.basePath),
		Strategy: "batch",
	}, nil
}

// UpdateOne writes t over the remote template with the given id, trying each
// request strategy in order. 404 and 405 move on to the next strategy; any
// other failure stops the chain. The returned error is a *WriteError listing
// every attempt.
func (g *Gateway) UpdateOne(ctx context.Context, id string, t model.Template) (*WriteResult, error) {
	var attempts []Attempt

	for _, s := range g.strategies {
		attempt, result := g.try(ctx, s, id, t)
		attempts = append(attempts, attempt)

		g.logger.Debug().
			Str(logging.KeyKey, t.Key()).
			Str(logging.KeyStrategy, s.Name).
			Str(logging.KeyMethod, attempt.Method).
			Int(logging.KeyStatus, attempt.Status).
			Stringer("outcome", attempt.Outcome).
			Msg("update attempt")

		switch attempt.Outcome {
		case Success:
			return result, nil
		case Fatal:
			return nil, &WriteError{Attempts: attempts}
		}
	}

	return nil, &WriteError{Exhausted: true, Attempts: attempts}
}

func (g *Gateway) try(ctx context.Context, s Strategy, id string, t model.Template) (Attempt, *WriteResult) {
	path, body := s.Build(g.basePath, id, t)
	attempt := Attempt{Strategy: s.Name, Method: s.Method, URL: g.client.URL(path)}

	var resp *Response
	var err error
	switch s.Method {
	case http.MethodPatch:
		resp, err = g.client.Patch(ctx, path, body)
	default:
		resp, err = g.client.Put(ctx, path, body)
	}

	if err != nil {
		attempt.Err = err
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			attempt.Status = httpErr.Status
			attempt.Body = httpErr.Body
			if isUnsupported(httpErr.Status) {
				attempt.Outcome = Retryable
				return attempt, nil
			}
		}
		attempt.Outcome = Fatal
		return attempt, nil
	}

	attempt.Status = resp.Status
	sent := t
	sent.ID = id
	parsed := ParseWriteResponse(resp.Body, []model.Template{sent})
	switch parsed.Shape {
	case Recognized:
		attempt.Outcome = Success
		return attempt, &WriteResult{
			Template: parsed.Templates[0],
			Method:   s.Method,
			URL:      attempt.URL,
			Strategy: s.Name,
		}
	case ErrorShaped:
		attempt.Body = string(resp.Body)
		attempt.Err = ErrErrorResponse
	default:
		attempt.Body = string(resp.Body)
		attempt.Err = ErrUnrecognizedResponse
	}
	attempt.Outcome = Fatal
	return attempt, nil
}
