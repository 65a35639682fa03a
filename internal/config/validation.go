package config

import (
	"fmt"
	"strings"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// Validate checks the cross references between locales and groups.
func (c *Config) Validate() error {
	var problems []string
	report := func(field string, value interface{}, format string, args ...interface{}) {
		ve := &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
		problems = append(problems, ve.Error())
	}

	names := make(map[string]bool, len(c.Locales))
	for i, l := range c.Locales {
		if names[l.Name] {
			report(fmt.Sprintf("locales[%d].name", i), l.Name, "duplicate locale %q", l.Name)
		}
		names[l.Name] = true
	}
	for i, l := range c.Locales {
		for _, fb := range l.Fallbacks {
			if !names[fb] {
				report(fmt.Sprintf("locales[%d].fallbacks", i), fb, "fallback %q of %q is not a configured locale", fb, l.Name)
			}
			if fb == l.Name {
				report(fmt.Sprintf("locales[%d].fallbacks", i), fb, "locale %q lists itself as a fallback", l.Name)
			}
		}
	}

	groups := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		if g.Name == "" {
			report(field+".name", g.Name, "group name is empty")
		}
		if groups[g.Name] {
			report(field+".name", g.Name, "duplicate group %q", g.Name)
		}
		groups[g.Name] = true
		if strings.Contains(g.Path, "..") {
			report(field+".path", g.Path, "path contains traversal")
		}
		for _, l := range g.Locales {
			if !names[l] {
				report(field+".locales", l, "locale %q is not configured", l)
			}
		}
		if len(g.Locales) > 0 && !strings.Contains(g.Dictionary, LocalePlaceholder) {
			report(field+".dictionary", g.Dictionary, "dictionary template must contain %s", LocalePlaceholder)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return cerrors.NewConfigError(cerrors.ErrCodeConfigInvalid, strings.Join(problems, "; "))
}
