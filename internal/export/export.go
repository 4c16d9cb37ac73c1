// Package export writes a snapshot of the remote template collection to disk
// in the layout read by localstore.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/interfaces"
	"github.com/mailtmpl/cli/internal/localstore"
	"github.com/mailtmpl/cli/internal/logging"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/rs/zerolog"
)

// Result describes a finished export.
type Result struct {
	// Seen counts every template returned by the listing, including those
	// skipped by the filter or for missing fields.
	Seen int
	// Written counts template directories written.
	Written int
	// Dir is the absolute output directory.
	Dir string
	// Templates are the written templates, in listing order.
	Templates []model.Template
}

// Exporter projects remote templates into a directory tree.
type Exporter struct {
	gateway interfaces.TemplateGateway
	logger  zerolog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(gateway interfaces.TemplateGateway, logger zerolog.Logger) *Exporter {
	return &Exporter{gateway: gateway, logger: logger}
}

// Export lists the remote collection and writes every template under outDir.
// Existing files of the same name are overwritten; other files are left alone.
func (e *Exporter) Export(ctx context.Context, outDir string, filter model.Filter) (*Result, error) {
	templates, ok, err := e.gateway.ListAll(ctx)
	if err != nil {
		return nil, errors.NewRemoteError("failed to list remote templates", err)
	}
	if !ok {
		return nil, errors.NewListingUnavailableError(
			"the template listing endpoint is not available; export needs it. " +
				"Check EMAIL_TEMPLATES_PATH if the collection lives at a different path")
	}

	dir, err := filepath.Abs(outDir)
	if err != nil {
		return nil, errors.NewGenericError(fmt.Sprintf("failed to resolve %s", outDir), err)
	}

	result := &Result{Seen: len(templates), Dir: dir}
	for _, t := range templates {
		if t.TemplateType == "" || t.LanguageTag == "" || t.Details == nil {
			e.logger.Debug().Str(logging.KeyKey, t.Key()).Msg("skipping incomplete template")
			continue
		}
		if !filter.Allows(t) {
			continue
		}
		if _, err := templateDir(dir, t); err != nil {
			e.logger.Warn().Err(err).Str(logging.KeyKey, t.Key()).Msg("skipping template with unsafe path")
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := WriteTemplate(dir, t)
		if err != nil {
			return nil, err
		}
		e.logger.Debug().Str(logging.KeyKey, t.Key()).Str(logging.KeyPath, path).Msg("exported")
		result.Written++
		result.Templates = append(result.Templates, t)
	}

	return result, nil
}

// WriteTemplate writes t under root/<type>/<language> and returns that directory.
func WriteTemplate(root string, t model.Template) (string, error) {
	dir, err := templateDir(root, t)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewGenericError(fmt.Sprintf("failed to create directory %s", dir), err)
	}

	d := *t.Details
	if err := writeFile(filepath.Join(dir, localstore.SubjectFile), localstore.NormalizeText(d.Subject)); err != nil {
		return "", err
	}

	contentFile := localstore.ContentFileFor(d.ContentType)
	if err := writeFile(filepath.Join(dir, contentFile), localstore.NormalizeText(d.Content)); err != nil {
		return "", err
	}
	// A stale file of the other content type would make the directory unloadable.
	other := localstore.HTMLContentFile
	if contentFile == localstore.HTMLContentFile {
		other = localstore.TextContentFile
	}
	if err := removeIfExists(filepath.Join(dir, other)); err != nil {
		return "", err
	}

	metaPath := filepath.Join(dir, localstore.MetaFile)
	meta := localstore.MetaFor(d)
	if meta.IsEmpty() {
		if err := removeIfExists(metaPath); err != nil {
			return "", err
		}
		return dir, nil
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", errors.NewGenericError(fmt.Sprintf("failed to encode %s", metaPath), err)
	}
	if err := writeFile(metaPath, string(data)+"\n"); err != nil {
		return "", err
	}
	return dir, nil
}

// templateDir returns root/<type>/<language>. Each segment must name a
// single child directory; anything that could leave root is rejected.
func templateDir(root string, t model.Template) (string, error) {
	for _, segment := range []string{t.TemplateType, t.LanguageTag} {
		if segment == "" || segment == "." || segment == ".." ||
			strings.ContainsAny(segment, `/\`) || filepath.VolumeName(segment) != "" {
			return "", errors.NewGenericError(fmt.Sprintf("template %s does not map to a directory under %s", t.Key(), root), nil)
		}
	}
	dir := filepath.Join(root, t.TemplateType, t.LanguageTag)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewGenericError(fmt.Sprintf("template %s does not map to a directory under %s", t.Key(), root), err)
	}
	return dir, nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewGenericError(fmt.Sprintf("failed to write file %s", path), err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewGenericError(fmt.Sprintf("failed to remove %s", path), err)
	}
	return nil
}
