// Package voice holds the synthesis voice catalog: which voices exist per
// language and how UI language codes map onto the engine's language tags.
package voice

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var defaultCatalogYAML []byte

// Voice is a single synthesis voice.
type Voice struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Language groups the voices available for one UI language code.
type Language struct {
	Code   string  `yaml:"code" json:"code"`
	Name   string  `yaml:"name" json:"name"`
	Voices []Voice `yaml:"voices" json:"voices"`
}

// Catalog is the parsed voice catalog.
type Catalog struct {
	Languages  []Language        `yaml:"languages" json:"languages"`
	EngineLang map[string]string `yaml:"engine_lang" json:"-"`
}

// Parse decodes a YAML catalog and checks it is usable.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("voice catalog: decode: %w", err)
	}
	if len(c.Languages) == 0 {
		return nil, fmt.Errorf("voice catalog: no languages defined")
	}
	seen := make(map[string]bool, len(c.Languages))
	for _, l := range c.Languages {
		if l.Code == "" || len(l.Voices) == 0 {
			return nil, fmt.Errorf("voice catalog: language %q has no code or voices", l.Name)
		}
		if seen[l.Code] {
			return nil, fmt.Errorf("voice catalog: duplicate language %q", l.Code)
		}
		seen[l.Code] = true
	}
	if c.EngineLang == nil {
		c.EngineLang = map[string]string{}
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is
// malformed, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Valid reports whether voiceID is offered for the language code.
func (c *Catalog) Valid(langCode, voiceID string) bool {
	for _, l := range c.Languages {
		if l.Code != langCode {
			continue
		}
		for _, v := range l.Voices {
			if v.ID == voiceID {
				return true
			}
		}
		return false
	}
	return false
}

// HasLanguage reports whether the catalog knows langCode.
func (c *Catalog) HasLanguage(langCode string) bool {
	for _, l := range c.Languages {
		if l.Code == langCode {
			return true
		}
	}
	return false
}

// BackendLang maps a UI language code to the engine tag; codes without an
// entry pass through unchanged.
func (c *Catalog) BackendLang(langCode string) string {
	if mapped, ok := c.EngineLang[langCode]; ok {
		return mapped
	}
	return langCode
}
