package interfaces

import (
	"context"

	"github.com/mailtmpl/cli/internal/model"
	"github.com/mailtmpl/cli/internal/remote"
)

// TemplateGateway is the remote template collection as seen by the
// reconciliation engine and the exporter
type TemplateGateway interface {
	// ListAll returns ok=false, without error, when the listing endpoint is unavailable
	ListAll(ctx context.Context) (templates []model.Template, ok bool, err error)
	BulkUpsert(ctx context.Context, templates []model.Template) ([]model.Template, error)
	CreateOne(ctx context.Context, t model.Template) (*remote.WriteResult, error)
	UpdateOne(ctx context.Context, id string, t model.Template) (*remote.WriteResult, error)
}

// TemplateStore loads local templates from one or more directory roots
type TemplateStore interface {
	Load(roots ...string) ([]model.Template, error)
}
