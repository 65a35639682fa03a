package translate

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// RegisterBuiltins installs the standard handlers for markup in the prefix
// namespace:
//
//	<l10n:if locale="es es-LA">...</l10n:if>   kept when the target locale is listed
//	<l10n:if chain="es">...</l10n:if>          kept when a listed locale is in the fallback chain
//	<l10n:link href="about.xml">About</l10n:link>  becomes <a href="about.es.xml">
//
// and the ${locale}, ${fallbacks} and ${resource} placeholders.
func RegisterBuiltins(r *Registry, prefix string) {
	r.HandleNode(ElementNode, prefix+":if", ifHandler)
	r.HandleNode(ElementNode, prefix+":link", linkHandler)

	r.HandleText("locale", func(c *Context) (string, error) {
		return c.Locale(), nil
	})
	r.HandleText("fallbacks", func(c *Context) (string, error) {
		return strings.Join(c.Chain()[1:], " "), nil
	})
	r.HandleText("resource", func(c *Context) (string, error) {
		return c.Params().Resource, nil
	})
}

// DefaultRegistry returns a registry holding the builtins for the default
// template prefix.
func DefaultRegistry() *Registry {
	r := NewRegistry(nil)
	RegisterBuiltins(r, DefaultTemplate().Prefix)
	return r
}

func ifHandler(c *Context, tok etree.Token) ([]etree.Token, error) {
	el := tok.(*etree.Element)

	keep := true
	if list := strings.Fields(el.SelectAttrValue("locale", "")); len(list) > 0 {
		keep = containsFold(list, c.Locale())
	}
	if list := strings.Fields(el.SelectAttrValue("chain", "")); keep && len(list) > 0 {
		keep = false
		for _, l := range list {
			if containsFold(c.Chain(), l) {
				keep = true
				break
			}
		}
	}
	if !keep {
		return nil, nil
	}
	return c.CopyChildren(el)
}

func linkHandler(c *Context, tok etree.Token) ([]etree.Token, error) {
	el := tok.(*etree.Element)

	href := el.SelectAttrValue("href", "")
	if href == "" {
		return nil, cerrors.NewTransformError(cerrors.ErrCodeTransformFailed,
			fmt.Sprintf("%s has no href", el.FullTag()), nil)
	}
	locale := el.SelectAttrValue("locale", c.Locale())

	out := etree.NewElement("a")
	for _, a := range el.Attr {
		if a.Space == "" && (a.Key == "href" || a.Key == "locale") {
			continue
		}
		if err := c.copyAttr(out, a); err != nil {
			return nil, err
		}
	}
	out.CreateAttr("href", LocalizedHref(href, c.Params().Locales, locale))

	children, err := c.CopyChildren(el)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		out.AddChild(child)
	}
	return []etree.Token{out}, nil
}

// LocalizedHref rewrites the path of href to the sibling for locale,
// keeping any query or fragment.
func LocalizedHref(href string, locales []string, locale string) string {
	p, rest := href, ""
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		p, rest = href[:i], href[i:]
	}
	if p == "" {
		return href
	}
	return document.ParseResourceName(p, locales).WithLocale(locale).Path() + rest
}

func containsFold(list []string, s string) bool {
	for _, l := range list {
		if strings.EqualFold(l, s) {
			return true
		}
	}
	return false
}
