package model

import (
	"fmt"
	"os"
	"strings"

	decimal "github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Descriptor carries the metadata the pipeline needs about one model: routing
// identity, capabilities and cost.
type Descriptor struct {
	ID              string          `yaml:"id" json:"id"`
	Name            string          `yaml:"name" json:"name"`
	Provider        string          `yaml:"provider" json:"provider"`                 // canonical id used for credential checks and routing
	DisplayProvider string          `yaml:"display_provider" json:"display_provider"` // human-readable, for listings only
	SupportsVision  bool            `yaml:"supports_vision" json:"supports_vision"`
	SupportsJSON    bool            `yaml:"supports_json" json:"supports_json"`
	InputCostPer1K  decimal.Decimal `yaml:"input_cost_per_1k" json:"input_cost_per_1k"`
	OutputCostPer1K decimal.Decimal `yaml:"output_cost_per_1k" json:"output_cost_per_1k"`
	RateLimitNote   string          `yaml:"rate_limit_note,omitempty" json:"rate_limit_note,omitempty"`
}

func desc(id, provider, display string, vision bool, inCost, outCost float64) Descriptor {
	name := id
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		name = id[idx+1:]
	}
	return Descriptor{
		ID:              id,
		Name:            name,
		Provider:        provider,
		DisplayProvider: display,
		SupportsVision:  vision,
		SupportsJSON:    true,
		InputCostPer1K:  decimal.NewFromFloat(inCost),
		OutputCostPer1K: decimal.NewFromFloat(outCost),
	}
}

// builtinCatalog is the compiled-in model set. A catalog file may extend or
// override it; entries here keep the service useful without one.
func builtinCatalog() []Descriptor {
	return []Descriptor{
		desc("gemini/gemini-2.0-flash-exp", "gemini", "Gemini API", true, 0, 0),
		desc("gemini/gemini-1.5-flash", "gemini", "Gemini API", true, 0.000075, 0.0003),
		desc("gemini/gemini-1.5-pro", "gemini", "Gemini API", true, 0.00125, 0.005),
		desc("openai/gpt-4o-mini", "openai", "OpenAI", true, 0.00015, 0.0006),
		desc("openai/gpt-4o", "openai", "OpenAI", true, 0.0025, 0.01),
		desc("openai/gpt-4.1-mini", "openai", "OpenAI", true, 0.0004, 0.0016),
		desc("openai/gpt-3.5-turbo", "openai", "OpenAI", false, 0.0005, 0.0015),
		desc("anthropic/claude-3-5-sonnet-20241022", "anthropic", "Anthropic", true, 0.003, 0.015),
		desc("anthropic/claude-3-5-haiku-20241022", "anthropic", "Anthropic", false, 0.0008, 0.004),
	}
}

type catalogFile struct {
	Models []Descriptor `yaml:"models"`
}

// LoadCatalog returns the model catalog, merged with the optional YAML
// catalog file at path. File entries override builtin entries with the same
// id; new ids are appended. An empty path yields the builtin catalog.
func LoadCatalog(path string) ([]Descriptor, error) {
	catalog := builtinCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
	}

	index := make(map[string]int, len(catalog))
	for i, d := range catalog {
		index[d.ID] = i
	}
	for _, d := range file.Models {
		if d.ID == "" || d.Provider == "" {
			return nil, fmt.Errorf("model catalog %s: entries need id and provider", path)
		}
		if d.Name == "" {
			d.Name = d.ID
			if idx := strings.LastIndex(d.ID, "/"); idx >= 0 {
				d.Name = d.ID[idx+1:]
			}
		}
		if i, ok := index[d.ID]; ok {
			catalog[i] = d
			continue
		}
		index[d.ID] = len(catalog)
		catalog = append(catalog, d)
	}
	return catalog, nil
}
