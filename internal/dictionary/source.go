package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/beevik/etree"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// Format is a dictionary serialization.
type Format int

const (
	FormatXML Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	case FormatJSON:
		return "json"
	default:
		return "xml"
	}
}

// FormatOf picks the format from the extension of location. Unknown
// extensions are read as XML.
func FormatOf(location string) Format {
	ext := strings.ToLower(path.Ext(location))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatXML
	}
}

// Entry is one phrase as written in a source dictionary.
type Entry struct {
	ID   string
	Text string
}

// Source is one locale's dictionary for a group, before merging.
type Source struct {
	Locale       string
	Location     string
	Entries      []Entry
	Dependencies []string
}

// ParseSource decodes data according to the format of location.
//
// XML dictionaries list <phrase id="..."> elements anywhere below the root.
// YAML, TOML and JSON dictionaries are maps; nested maps produce
// dot-separated ids, so {nav: {home: Home}} defines "nav.home".
func ParseSource(location, locale string, data []byte) (*Source, error) {
	var (
		entries []Entry
		err     error
	)
	switch FormatOf(location) {
	case FormatYAML:
		entries, err = decodeMap(data, func(b []byte, v *map[string]interface{}) error { return yaml.Unmarshal(b, v) })
	case FormatTOML:
		entries, err = decodeMap(data, func(b []byte, v *map[string]interface{}) error { return toml.Unmarshal(b, v) })
	case FormatJSON:
		entries, err = decodeMap(data, func(b []byte, v *map[string]interface{}) error {
			return json.Unmarshal(jsonc.ToJSON(b), v)
		})
	default:
		entries, err = decodeXML(data)
	}
	if err != nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeParseFailed,
			fmt.Sprintf("invalid %s dictionary", FormatOf(location)), err).WithLocation(location)
	}
	return &Source{Locale: locale, Location: location, Entries: entries}, nil
}

func decodeXML(data []byte) ([]Entry, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("no root element")
	}
	var entries []Entry
	for i, el := range doc.FindElements("//phrase") {
		id := strings.TrimSpace(el.SelectAttrValue("id", ""))
		if id == "" {
			return nil, fmt.Errorf("phrase %d has no id", i+1)
		}
		entries = append(entries, Entry{ID: id, Text: phraseText(el)})
	}
	return entries, nil
}

// phraseText returns the serialized content of el, so phrases may carry
// inline markup.
func phraseText(el *etree.Element) string {
	var buf bytes.Buffer
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			buf.WriteString(t.Data)
		case *etree.Element:
			doc := etree.NewDocument()
			doc.SetRoot(t.Copy())
			s, _ := doc.WriteToString()
			buf.WriteString(s)
		}
	}
	return buf.String()
}

func decodeMap(data []byte, unmarshal func([]byte, *map[string]interface{}) error) ([]Entry, error) {
	var m map[string]interface{}
	if err := unmarshal(data, &m); err != nil {
		return nil, err
	}
	var entries []Entry
	if err := flatten("", m, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func flatten(prefix string, m map[string]interface{}, out *[]Entry) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		id := k
		if prefix != "" {
			id = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]interface{}:
			if err := flatten(id, v, out); err != nil {
				return err
			}
		case string:
			*out = append(*out, Entry{ID: id, Text: v})
		case bool, int, int64, uint64, float64:
			*out = append(*out, Entry{ID: id, Text: fmt.Sprint(v)})
		case nil:
			*out = append(*out, Entry{ID: id})
		default:
			return fmt.Errorf("phrase %q has unsupported value of type %T", id, v)
		}
	}
	return nil
}
