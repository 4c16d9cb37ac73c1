package model

// Content types understood by the management API.
const (
	ContentTypePlain = "text/plain"
	ContentTypeHTML  = "text/html"
)

// KeySeparator joins template type and language tag in a Key.
const KeySeparator = "::"

// Details is the mutable payload of an email template.
type Details struct {
	Subject     string `json:"subject" yaml:"subject"`
	Content     string `json:"content" yaml:"content"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty" yaml:"replyTo,omitempty"`
	SendFrom    string `json:"sendFrom,omitempty" yaml:"sendFrom,omitempty"`
}

// IsPlainText reports whether the content is stored as plain text rather than HTML.
func (d Details) IsPlainText() bool {
	return d.ContentType == ContentTypePlain
}

// Template is one localized email template. Templates read from disk have an
// empty ID; templates returned by the management API carry the remote id.
type Template struct {
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"`
	TemplateType string   `json:"templateType" yaml:"templateType"`
	LanguageTag  string   `json:"languageTag" yaml:"languageTag"`
	Details      *Details `json:"details,omitempty" yaml:"details,omitempty"`
}

// Key returns the pairing key used to match local and remote templates.
func (t Template) Key() string {
	return Key(t.TemplateType, t.LanguageTag)
}

// Key builds the pairing key for a template type and language tag.
func Key(templateType, languageTag string) string {
	return templateType + KeySeparator + languageTag
}

// Filter selects templates by type and language. An empty set allows everything.
type Filter struct {
	Types     []string
	Languages []string
}

// AllowsType reports whether the template type passes the filter.
func (f Filter) AllowsType(templateType string) bool {
	return allows(f.Types, templateType)
}

// AllowsLanguage reports whether the language tag passes the filter.
func (f Filter) AllowsLanguage(languageTag string) bool {
	return allows(f.Languages, languageTag)
}

// Allows reports whether t passes both the type and language filter.
func (f Filter) Allows(t Template) bool {
	return f.AllowsType(t.TemplateType) && f.AllowsLanguage(t.LanguageTag)
}

func allows(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
