// Package tmpl renders the configurable text templates, such as the default
// merge commit message.
package tmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// short abbreviates a revision id. Shorter ids are returned unchanged.
func short(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
	"short": short,
}

func parse(tmpl string) (*template.Template, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}

// Check reports whether tmpl parses.
func Check(tmpl string) error {
	_, err := parse(tmpl)
	return err
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - join: Join string slice with separator (e.g., join .Files ", ")
//   - lower, upper, trim: strings.ToLower, strings.ToUpper, strings.TrimSpace
//   - short: Abbreviate a revision id to 12 characters
func Render(tmpl string, data any) (string, error) {
	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
