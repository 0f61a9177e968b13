package idp

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/saml.yaml.tmpl templates/notes.txt
var templatesFS embed.FS

const notesFile = "notes.txt"

// Templates holds the output template and the advisory notes printed
// alongside it.
type Templates struct {
	Output string
	Notes  string
}

// DefaultTemplates returns the embedded templates.
func DefaultTemplates() Templates {
	out, _ := templatesFS.ReadFile("templates/saml.yaml.tmpl")
	notes, _ := templatesFS.ReadFile("templates/" + notesFile)
	return Templates{Output: string(out), Notes: strings.TrimSpace(string(notes))}
}

// LoadTemplates reads the output template at path. A notes.txt next to it
// replaces the default notes.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	out, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read template: %w", err)
	}
	t.Output = string(out)
	notes, err := os.ReadFile(filepath.Join(filepath.Dir(path), notesFile))
	switch {
	case err == nil:
		t.Notes = strings.TrimSpace(string(notes))
	case !errors.Is(err, fs.ErrNotExist):
		return t, fmt.Errorf("read notes: %w", err)
	}
	return t, nil
}

var funcs = template.FuncMap{
	"toYAML":                toYAML,
	"indent":                indent,
	"excludeKeysContaining": excludeKeysContaining,
}

// Render executes tmpl with the configs, keyed by entityID, as .Configs.
func Render(w io.Writer, tmpl string, configs map[string]any) error {
	t, err := template.New("saml").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := t.Execute(w, map[string]any{"Configs": configs}); err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	return nil
}

func toYAML(v any) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}

// excludeKeysContaining drops every key of m that contains one of subs.
func excludeKeysContaining(m map[string]any, subs ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		keep := true
		for _, s := range subs {
			if strings.Contains(k, s) {
				keep = false
				break
			}
		}
		if keep {
			out[k] = v
		}
	}
	return out
}
