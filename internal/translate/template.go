package translate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// MissingPolicy decides what a phrase without any translation becomes.
type MissingPolicy string

const (
	// MissingKey outputs the phrase id.
	MissingKey MissingPolicy = "key"
	// MissingEmpty outputs nothing.
	MissingEmpty MissingPolicy = "empty"
	// MissingMarker outputs the id wrapped in double brackets.
	MissingMarker MissingPolicy = "marker"
	// MissingError fails the transformation.
	MissingError MissingPolicy = "error"
)

// Template describes the localization markup of source documents.
type Template struct {
	// Prefix is the namespace prefix of localization elements.
	Prefix string `yaml:"prefix"`
	// Namespace is the URI the prefix is bound to.
	Namespace string `yaml:"namespace"`
	// Phrase is the element replaced by a phrase text.
	Phrase string `yaml:"phrase"`
	// Key is the attribute of Phrase holding the phrase id.
	Key string `yaml:"key"`
	// AttributePrefix marks attributes whose value is a phrase id:
	// l10n:title="nav.home" becomes title="Home".
	AttributePrefix string `yaml:"attribute_prefix"`
	// ValueOf is the element replaced by a variable value.
	ValueOf string `yaml:"value_of"`
	// Locale is the element replaced by the locale name.
	Locale string `yaml:"locale"`
	// Missing is the policy for phrases without translation.
	Missing MissingPolicy `yaml:"missing"`
	// Indent is the output indentation in spaces; zero keeps the source
	// whitespace.
	Indent int `yaml:"indent"`
}

// DefaultTemplate returns the built-in template.
func DefaultTemplate() *Template {
	return &Template{
		Prefix:          "l10n",
		Namespace:       "urn:glossa:l10n",
		Phrase:          "phrase",
		Key:             "id",
		AttributePrefix: "l10n",
		ValueOf:         "value-of",
		Locale:          "locale",
		Missing:         MissingKey,
	}
}

// LoadTemplate reads a YAML template file over the defaults.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, cerrors.WrapIO(err, cerrors.ErrCodeFileNotFound, "failed to read template "+path)
	}
	t, err := ParseTemplate(data)
	if err != nil {
		if ce, ok := err.(*cerrors.ContentError); ok {
			return nil, ce.WithLocation(path)
		}
		return nil, err
	}
	return t, nil
}

// ParseTemplate decodes YAML over the defaults and validates the result.
func ParseTemplate(data []byte) (*Template, error) {
	t := DefaultTemplate()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return nil, cerrors.NewTransformError(cerrors.ErrCodeTemplateInvalid, "invalid template", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that every element name is set and the missing policy
// is known.
func (t *Template) Validate() error {
	var problems []string
	required := map[string]string{
		"prefix":           t.Prefix,
		"phrase":           t.Phrase,
		"key":              t.Key,
		"attribute_prefix": t.AttributePrefix,
		"value_of":         t.ValueOf,
		"locale":           t.Locale,
	}
	for _, field := range []string{"prefix", "phrase", "key", "attribute_prefix", "value_of", "locale"} {
		if strings.TrimSpace(required[field]) == "" {
			problems = append(problems, field+" is empty")
		} else if strings.ContainsAny(required[field], ": \t\n") {
			problems = append(problems, fmt.Sprintf("%s %q is not a local name", field, required[field]))
		}
	}
	switch t.Missing {
	case MissingKey, MissingEmpty, MissingMarker, MissingError:
	default:
		problems = append(problems, fmt.Sprintf("unknown missing policy %q", t.Missing))
	}
	if t.Indent < 0 {
		problems = append(problems, "indent is negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return cerrors.NewTransformError(cerrors.ErrCodeTemplateInvalid, strings.Join(problems, "; "), nil)
}

// Bytes renders the template as YAML.
func (t *Template) Bytes() ([]byte, error) {
	return yaml.Marshal(t)
}

func (t *Template) qname(local string) string {
	return t.Prefix + ":" + local
}
