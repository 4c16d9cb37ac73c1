package localstore

import (
	"strings"
	"unicode"

	"github.com/mailtmpl/cli/internal/model"
)

// File names inside a <type>/<language> template directory.
const (
	SubjectFile     = "subject.txt"
	HTMLContentFile = "content.html"
	TextContentFile = "content.txt"
	MetaFile        = "meta.json"
)

// Meta is the optional per-template metadata file.
type Meta struct {
	ContentType string `json:"contentType,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty"`
	SendFrom    string `json:"sendFrom,omitempty"`
}

// IsEmpty reports whether no field is set, in which case no meta file is written.
func (m Meta) IsEmpty() bool {
	return m.ContentType == "" && m.ReplyTo == "" && m.SendFrom == ""
}

// MetaFor extracts the metadata of d.
func MetaFor(d model.Details) Meta {
	return Meta{ContentType: d.ContentType, ReplyTo: d.ReplyTo, SendFrom: d.SendFrom}
}

// ContentFileFor picks the content file name for a content type: plain text
// goes to content.txt, everything else to content.html.
func ContentFileFor(contentType string) string {
	if contentType == model.ContentTypePlain {
		return TextContentFile
	}
	return HTMLContentFile
}

// TrimText removes trailing whitespace, as applied when reading template text.
func TrimText(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// NormalizeText trims trailing whitespace and appends exactly one newline,
// as applied when writing template text.
func NormalizeText(s string) string {
	return TrimText(s) + "\n"
}
