package include

import (
	"strings"

	"github.com/beevik/etree"
)

// XIncludeNamespace is recognised on directive elements regardless of the
// prefix they are written with.
const XIncludeNamespace = "http://www.w3.org/2001/XInclude"

// Parse modes of a directive.
const (
	ParseTree = "tree"
	ParseText = "text"
	ParseHTML = "html"
)

// Directive is one include element found in a tree.
type Directive struct {
	Element  *etree.Element
	Href     string
	Selector string
	Parse    string
	Encoding string
}

func newDirective(el *etree.Element) Directive {
	parse := strings.ToLower(strings.TrimSpace(el.SelectAttrValue("parse", ParseTree)))
	if parse == "" || parse == "xml" {
		parse = ParseTree
	}
	return Directive{
		Element:  el,
		Href:     strings.TrimSpace(el.SelectAttrValue("href", "")),
		Selector: strings.TrimSpace(el.SelectAttrValue("xpath", "")),
		Parse:    parse,
		Encoding: strings.TrimSpace(el.SelectAttrValue("encoding", "")),
	}
}

// Identifier names the include for cycle detection: the target alone when
// the whole target is included, target[selector] otherwise. Intra-document
// includes use the current document as their target so they share an
// identity with an external include of the same document and selector.
func Identifier(target, selector string) string {
	if selector == "" {
		return target
	}
	if target == "" {
		return selector
	}
	return target + "[" + selector + "]"
}

// markup recognises directive and literal elements.
type markup struct {
	prefix string
}

func (m markup) isDirective(el *etree.Element) bool {
	return el.Tag == "include" && m.inNamespace(el)
}

func (m markup) isLiteral(el *etree.Element) bool {
	return el.Tag == "literal" && m.inNamespace(el)
}

func (m markup) inNamespace(el *etree.Element) bool {
	if el.Space == m.prefix {
		return true
	}
	return el.Space != "" && el.NamespaceURI() == XIncludeNamespace
}

// collect appends every directive below el in document order. It does not
// descend into literal regions or into directives themselves.
func (m markup) collect(el *etree.Element, out []*etree.Element) []*etree.Element {
	for _, child := range el.ChildElements() {
		switch {
		case m.isLiteral(child):
		case m.isDirective(child):
			out = append(out, child)
		default:
			out = m.collect(child, out)
		}
	}
	return out
}

// diagnostic builds the element shown in place of a failed include.
func (m markup) diagnostic(tag, id string, err error) *etree.Element {
	el := etree.NewElement(tag)
	el.Space = m.prefix
	el.CreateAttr("ref", id)
	el.SetText(err.Error())
	return el
}
