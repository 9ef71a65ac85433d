package urlbuilder

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// ModelTokens holds the canonical placeholder substitutions for one model.
// Values not present in models.yaml are derived from the model name.
type ModelTokens struct {
	Name    string `yaml:"name"`
	Slug    string `yaml:"kebab"`
	Plus    string `yaml:"space_plus"`
	Encoded string `yaml:"passthrough"`
}

type registryFile struct {
	Models []ModelTokens `yaml:"models"`
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

func slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.TrimSpace(name), "")
	s = strings.ToLower(s)
	return strings.Trim(slugCollapse.ReplaceAllString(s, "-"), "-")
}

func loadRegistry(raw []byte) (map[string]ModelTokens, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse model registry: %w", err)
	}
	registry := make(map[string]ModelTokens, len(file.Models))
	for _, entry := range file.Models {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		if entry.Slug == "" {
			entry.Slug = slugify(entry.Name)
		}
		if entry.Plus == "" {
			entry.Plus = strings.ReplaceAll(entry.Name, " ", "+")
		}
		if entry.Encoded == "" {
			entry.Encoded = strings.ReplaceAll(entry.Name, " ", "%20")
		}
		registry[entry.Name] = entry
	}
	return registry, nil
}

var modelRegistry = mustRegistry()

func mustRegistry() map[string]ModelTokens {
	registry, err := loadRegistry(modelsYAML)
	if err != nil {
		panic(err)
	}
	return registry
}

// LookupModel returns the canonical tokens for a model name.
func LookupModel(name string) (ModelTokens, bool) {
	tokens, ok := modelRegistry[name]
	return tokens, ok
}

// Models lists the registered model names.
func Models() []string {
	out := make([]string, 0, len(modelRegistry))
	for name := range modelRegistry {
		out = append(out, name)
	}
	return out
}
