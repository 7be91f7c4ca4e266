// Package cfndocs generates AsciiDoc parameter tables from CloudFormation templates.
package cfndocs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/superwerker/superwerker/internal/helpers"
)

const (
	IndexFile = "index.adoc"

	blankDefault  = "**__Blank string__**"
	optionalValue = "__Optional__"
	requiredValue = "**__Requires input__**"
	noLabel       = "**NO_LABEL**"
	noDescription = "NO_DESCRIPTION"
	unordered     = "x"
)

// ErrNoTemplates is returned when no template matches the configured patterns.
var ErrNoTemplates = errors.New("no templates found")

// ErrNoEntrypoints is returned when no template declares a documentation entrypoint.
var ErrNoEntrypoints = errors.New("no documentation entrypoints found")

type label struct {
	Default string `yaml:"default"`
}

type ParameterGroup struct {
	Label      label    `yaml:"Label"`
	Parameters []string `yaml:"Parameters"`
}

type Interface struct {
	ParameterGroups []ParameterGroup `yaml:"ParameterGroups"`
	ParameterLabels map[string]label `yaml:"ParameterLabels"`
}

type Documentation struct {
	EntrypointName     string   `yaml:"EntrypointName"`
	Order              string   `yaml:"Order"`
	OptionalParameters []string `yaml:"OptionalParameters"`
}

type metadata struct {
	Interface     Interface     `yaml:"AWS::CloudFormation::Interface"`
	Documentation Documentation `yaml:"QuickStartDocumentation"`
}

type Parameter struct {
	Type        string  `yaml:"Type"`
	Default     *string `yaml:"Default"`
	Description string  `yaml:"Description"`
}

// Template is the documented part of a CloudFormation template.
type Template struct {
	// Name is the template file name without extensions.
	Name          string
	Interface     Interface
	Documentation Documentation
	Parameters    map[string]Parameter
}

// section returns the value node of the top-level key of a template document.
func section(doc *yaml.Node, key string) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			return doc.Content[i+1]
		}
	}
	return nil
}

// Parse reads the documentation metadata and parameters of a template. Intrinsic
// function tags elsewhere in the template are left undecoded.
func Parse(name string, content []byte) (*Template, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse template %s", name)
	}

	t := &Template{Name: name, Parameters: map[string]Parameter{}}
	if n := section(&doc, "Metadata"); n != nil {
		var m metadata
		if err := n.Decode(&m); err != nil {
			return nil, errors.Wrapf(err, "failed to decode metadata of %s", name)
		}
		t.Interface = m.Interface
		t.Documentation = m.Documentation
	}
	if n := section(&doc, "Parameters"); n != nil {
		if err := n.Decode(&t.Parameters); err != nil {
			return nil, errors.Wrapf(err, "failed to decode parameters of %s", name)
		}
	}
	return t, nil
}

// Load parses the template at path.
func Load(path string) (*Template, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read template %s", path)
	}
	name, _, _ := strings.Cut(filepath.Base(path), ".")
	return Parse(name, content)
}

// FileName is the name of the generated AsciiDoc file.
func (t *Template) FileName() string {
	return t.Name + ".adoc"
}

func (t *Template) order() string {
	return helpers.FirstNonEmpty(t.Documentation.Order, unordered)
}

func (t *Template) defaultValue(name string) string {
	p := t.Parameters[name]
	switch {
	case p.Default == nil && slices.Contains(t.Documentation.OptionalParameters, name):
		return optionalValue
	case p.Default == nil:
		return requiredValue
	case *p.Default == "":
		return blankDefault
	default:
		return *p.Default
	}
}

// AsciiDoc renders one table per parameter group.
func (t *Template) AsciiDoc() string {
	var b strings.Builder
	for _, group := range t.Interface.ParameterGroups {
		fmt.Fprintf(&b, "\n.%s\n", group.Label.Default)
		b.WriteString("[width=\"100%\",cols=\"16%,11%,73%\",options=\"header\",]\n")
		b.WriteString("|===\n")
		b.WriteString("|Parameter label (name) |Default value|Description")
		for _, name := range group.Parameters {
			lbl := helpers.FirstNonEmpty(t.Interface.ParameterLabels[name].Default, noLabel)
			description := helpers.FirstNonEmpty(t.Parameters[name].Description, noDescription)
			fmt.Fprintf(&b, "|%s\n(`%s`)|`%s`|%s", lbl, name, t.defaultValue(name), description)
		}
		b.WriteString("\n|===")
	}
	return b.String()
}

// Index includes the generated files ordered by their documentation order.
func Index(templates []*Template) string {
	sorted := slices.Clone(templates)
	slices.SortStableFunc(sorted, func(a, b *Template) int {
		if c := strings.Compare(a.order(), b.order()); c != 0 {
			return c
		}
		return strings.Compare(a.FileName(), b.FileName())
	})

	var b strings.Builder
	for _, t := range sorted {
		fmt.Fprintf(&b, "\n=== %s\ninclude::%s[]\n", t.Documentation.EntrypointName, t.FileName())
	}
	return b.String()
}

// Generate writes the parameter tables of every template matching patterns, and
// their index, into outDir.
func Generate(patterns []string, outDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}

	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return errors.Wrapf(err, "invalid template pattern %s", pattern)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return ErrNoTemplates
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", outDir)
	}

	var documented []*Template
	for _, path := range paths {
		logger.Info("processing template...", slog.String("path", path))
		t, err := Load(path)
		if err != nil {
			return err
		}
		if t.Documentation.EntrypointName == "" {
			logger.Info("no documentation entrypoint found, skipping", slog.String("path", path))
			continue
		}
		out := filepath.Join(outDir, t.FileName())
		if err = os.WriteFile(out, []byte(t.AsciiDoc()), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", out)
		}
		logger.Info("generated parameter tables", slog.String("file", out))
		documented = append(documented, t)
	}
	if len(documented) == 0 {
		return ErrNoEntrypoints
	}

	index := filepath.Join(outDir, IndexFile)
	return errors.Wrapf(os.WriteFile(index, []byte(Index(documented)), 0o644), "failed to write %s", index)
}
