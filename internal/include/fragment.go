package include

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// fragment is an unexpanded include result. Cached fragments are shared,
// so every use works on copy().
type fragment struct {
	tokens []etree.Token
}

func (f *fragment) copy() []etree.Token {
	out := make([]etree.Token, 0, len(f.tokens))
	for _, tok := range f.tokens {
		switch t := tok.(type) {
		case *etree.Element:
			out = append(out, t.Copy())
		case *etree.CharData:
			out = append(out, etree.NewText(t.Data))
		case *etree.Comment:
			out = append(out, etree.NewComment(t.Data))
		}
	}
	return out
}

// selectElements evaluates selector against doc. An empty selector selects
// the document element.
func selectElements(doc *etree.Document, selector string) ([]*etree.Element, error) {
	if selector == "" {
		if root := doc.Root(); root != nil {
			return []*etree.Element{root}, nil
		}
		return nil, nil
	}
	p, err := etree.CompilePath(selector)
	if err != nil {
		return nil, cerrors.NewResolutionError(cerrors.ErrCodeBadSelector,
			fmt.Sprintf("invalid selector %q", selector), err)
	}
	return doc.FindElementsPath(p), nil
}

func treeFragment(selected []*etree.Element) *fragment {
	f := &fragment{tokens: make([]etree.Token, 0, len(selected))}
	for _, el := range selected {
		f.tokens = append(f.tokens, el.Copy())
	}
	return f
}

func textFragment(s string) *fragment {
	return &fragment{tokens: []etree.Token{etree.NewText(s)}}
}

// innerText concatenates every character data node below el.
func innerText(el *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return b.String()
}

func selectedText(selected []*etree.Element) string {
	parts := make([]string, 0, len(selected))
	for _, el := range selected {
		parts = append(parts, innerText(el))
	}
	return strings.Join(parts, "")
}

// decode converts data from the named encoding to UTF-8. An empty name
// means UTF-8; a leading byte order mark is dropped either way.
func decode(data []byte, encoding string) (string, error) {
	if encoding != "" && !strings.EqualFold(encoding, "utf-8") && !strings.EqualFold(encoding, "utf8") {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return "", cerrors.NewResolutionError(cerrors.ErrCodeParseFailed,
				fmt.Sprintf("unknown encoding %q", encoding), err)
		}
		if data, err = enc.NewDecoder().Bytes(data); err != nil {
			return "", cerrors.NewResolutionError(cerrors.ErrCodeParseFailed,
				fmt.Sprintf("cannot decode %s content", encoding), err)
		}
	}
	return string(bytes.TrimPrefix(data, []byte("\ufeff"))), nil
}

// parseHTML reads an HTML document into an XML tree rooted at <html>.
func parseHTML(text string) (*etree.Document, error) {
	node, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, cerrors.NewResolutionError(cerrors.ErrCodeParseFailed, "malformed HTML", err)
	}
	doc := etree.NewDocument()
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if tok := convertHTML(c); tok != nil {
			doc.AddChild(tok)
		}
	}
	return doc, nil
}

func convertHTML(n *html.Node) etree.Token {
	switch n.Type {
	case html.ElementNode:
		el := etree.NewElement(n.Data)
		for _, a := range n.Attr {
			attr := el.CreateAttr(a.Key, a.Val)
			attr.Space = a.Namespace
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if tok := convertHTML(c); tok != nil {
				el.AddChild(tok)
			}
		}
		return el
	case html.TextNode:
		return etree.NewText(n.Data)
	case html.CommentNode:
		return etree.NewComment(n.Data)
	default:
		return nil
	}
}

// htmlBody returns the content of the body element of a converted
// document as a fragment.
func htmlBody(doc *etree.Document) *fragment {
	body := doc.FindElement("//body")
	if body == nil {
		return &fragment{}
	}
	f := &fragment{tokens: make([]etree.Token, 0, len(body.Child))}
	for _, tok := range body.Child {
		switch t := tok.(type) {
		case *etree.Element:
			f.tokens = append(f.tokens, t.Copy())
		case *etree.CharData:
			f.tokens = append(f.tokens, etree.NewText(t.Data))
		case *etree.Comment:
			f.tokens = append(f.tokens, etree.NewComment(t.Data))
		}
	}
	return f
}
