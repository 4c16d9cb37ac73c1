// Package localstore reads email templates from a directory tree laid out as
// <root>/<templateType>/<languageTag>/{subject.txt, content.html|content.txt, meta.json}.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/model"
)

// Options tune how template trees are read.
type Options struct {
	Filter model.Filter
	// AllowDuplicates keeps every template when two roots define the same
	// type and language; otherwise loading fails.
	AllowDuplicates bool
}

// Store reads templates from one or more roots.
type Store struct {
	opts Options
}

// NewStore creates a Store.
func NewStore(opts Options) *Store {
	return &Store{opts: opts}
}

// Load reads every root in order. Within a root, template types and then
// language tags are visited in lexical order.
func (s *Store) Load(roots ...string) ([]model.Template, error) {
	var all []model.Template
	seen := make(map[string]string)

	for _, root := range roots {
		templates, paths, err := loadRoot(root, s.opts.Filter)
		if err != nil {
			return nil, err
		}
		for i, t := range templates {
			key := t.Key()
			if prev, ok := seen[key]; ok && !s.opts.AllowDuplicates {
				return nil, errors.NewLocalStoreError(
					fmt.Sprintf("duplicate template %s defined in %s and %s", key, prev, paths[i]), nil)
			}
			seen[key] = paths[i]
			all = append(all, t)
		}
	}

	return all, nil
}

func loadRoot(root string, filter model.Filter) ([]model.Template, []string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewLocalStoreError(fmt.Sprintf("template directory %s does not exist", root), nil)
		}
		return nil, nil, errors.NewLocalStoreError(fmt.Sprintf("failed to access %s", root), err)
	}
	if !info.IsDir() {
		return nil, nil, errors.NewLocalStoreError(fmt.Sprintf("%s must be a directory", root), nil)
	}

	typeDirs, err := subdirs(root)
	if err != nil {
		return nil, nil, err
	}

	var templates []model.Template
	var paths []string
	for _, templateType := range typeDirs {
		if !filter.AllowsType(templateType) {
			continue
		}
		typeDir := filepath.Join(root, templateType)

		langDirs, err := subdirs(typeDir)
		if err != nil {
			return nil, nil, err
		}
		for _, lang := range langDirs {
			if !filter.AllowsLanguage(lang) {
				continue
			}
			dir := filepath.Join(typeDir, lang)
			details, err := readDetails(dir)
			if err != nil {
				return nil, nil, err
			}
			templates = append(templates, model.Template{
				TemplateType: templateType,
				LanguageTag:  lang,
				Details:      details,
			})
			paths = append(paths, dir)
		}
	}

	return templates, paths, nil
}

// subdirs lists visible directories under dir. os.ReadDir sorts by name.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewLocalStoreError(fmt.Sprintf("failed to read directory %s", dir), err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func readDetails(dir string) (*model.Details, error) {
	subjectPath := filepath.Join(dir, SubjectFile)
	subject, ok, err := readOptional(subjectPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewLocalStoreError(fmt.Sprintf("missing %s", subjectPath), nil)
	}

	htmlPath := filepath.Join(dir, HTMLContentFile)
	textPath := filepath.Join(dir, TextContentFile)
	html, hasHTML, err := readOptional(htmlPath)
	if err != nil {
		return nil, err
	}
	text, hasText, err := readOptional(textPath)
	if err != nil {
		return nil, err
	}

	details := &model.Details{Subject: TrimText(subject)}
	switch {
	case hasHTML && hasText:
		return nil, errors.NewLocalStoreError(
			fmt.Sprintf("both %s and %s exist in %s; keep exactly one", HTMLContentFile, TextContentFile, dir), nil)
	case hasHTML:
		details.Content = TrimText(html)
		details.ContentType = model.ContentTypeHTML
	case hasText:
		details.Content = TrimText(text)
		details.ContentType = model.ContentTypePlain
	default:
		return nil, errors.NewLocalStoreError(
			fmt.Sprintf("missing %s or %s in %s", HTMLContentFile, TextContentFile, dir), nil)
	}

	metaPath := filepath.Join(dir, MetaFile)
	raw, hasMeta, err := readOptional(metaPath)
	if err != nil {
		return nil, err
	}
	if hasMeta {
		var meta Meta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, errors.NewLocalStoreError(fmt.Sprintf("invalid JSON in %s", metaPath), err)
		}
		switch meta.ContentType {
		case "":
		case model.ContentTypePlain, model.ContentTypeHTML:
			details.ContentType = meta.ContentType
		default:
			return nil, errors.NewLocalStoreError(
				fmt.Sprintf("unsupported contentType %q in %s", meta.ContentType, metaPath), nil)
		}
		details.ReplyTo = meta.ReplyTo
		details.SendFrom = meta.SendFrom
	}

	return details, nil
}

// readOptional returns the file content and whether the file exists.
func readOptional(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.NewLocalStoreError(fmt.Sprintf("failed to read %s", path), err)
	}
	return string(data), true, nil
}
