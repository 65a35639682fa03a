package document

import (
	"strings"
)

// ResourceName is a resource path split into the parts that matter for
// locale-specific siblings: page.es-LA.xml has Base "page", Locale "es-LA"
// and Ext ".xml".
type ResourceName struct {
	Dir    string // up to and including the last separator
	Base   string
	Ext    string
	Locale string
}

// ParseResourceName decomposes p. A second extension is treated as a
// locale suffix only when it matches one of locales, compared without
// regard to case; the canonical spelling from locales is kept.
func ParseResourceName(p string, locales []string) ResourceName {
	var n ResourceName

	file := p
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		n.Dir, file = p[:i+1], p[i+1:]
	}

	stem := file
	if i := strings.LastIndexByte(file, '.'); i > 0 {
		stem, n.Ext = file[:i], file[i:]
	}
	n.Base = stem

	if i := strings.LastIndexByte(stem, '.'); i > 0 {
		suffix := stem[i+1:]
		for _, l := range locales {
			if strings.EqualFold(l, suffix) {
				n.Base = stem[:i]
				n.Locale = l
				break
			}
		}
	}

	return n
}

// Path reassembles the name.
func (n ResourceName) Path() string {
	var b strings.Builder
	b.WriteString(n.Dir)
	b.WriteString(n.Base)
	if n.Locale != "" {
		b.WriteByte('.')
		b.WriteString(n.Locale)
	}
	b.WriteString(n.Ext)
	return b.String()
}

// WithLocale returns the sibling name for locale; "" yields the neutral name.
func (n ResourceName) WithLocale(locale string) ResourceName {
	n.Locale = locale
	return n
}

// Neutral returns the name without a locale suffix.
func (n ResourceName) Neutral() ResourceName {
	return n.WithLocale("")
}

// WithExt returns the name with a different extension, e.g. ".diag.xml".
func (n ResourceName) WithExt(ext string) ResourceName {
	n.Ext = ext
	return n
}
