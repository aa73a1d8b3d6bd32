// Package catalog holds the static list of models a conversation can use.
package catalog

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sahilm/fuzzy"
	"github.com/samsaffron/relaychat/internal/config"
)

// ModelType marks a model's release channel.
type ModelType string

const (
	TypeProduction ModelType = "production"
	TypePreview    ModelType = "preview"
)

// ModelDescriptor is a read-only catalog entry.
type ModelDescriptor struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Developer     string    `json:"developer"`
	ContextWindow int       `json:"contextWindow"`
	Type          ModelType `json:"type"`
}

// ErrUnknownModel is returned by Resolve for ids outside the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Builtin is the default Groq-hosted model list. Order matters: the first entry is the default.
var Builtin = []ModelDescriptor{
	{ID: "llama-3.3-70b-versatile", Name: "LLaMA 3.3 70B Versatile", Developer: "Meta", ContextWindow: 128000, Type: TypeProduction},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", Developer: "Mistral", ContextWindow: 32768, Type: TypeProduction},
	{ID: "llama3-70b-8192", Name: "LLaMA3 70B", Developer: "Meta", ContextWindow: 8192, Type: TypeProduction},
	{ID: "gemma2-9b-it", Name: "Gemma2 9B", Developer: "Google", ContextWindow: 8192, Type: TypeProduction},
	{ID: "deepseek-r1-distill-llama-70b", Name: "DeepSeek R1 Distill LLaMA 70B", Developer: "DeepSeek", ContextWindow: 128000, Type: TypePreview},
}

// Catalog is an immutable, ordered model list.
type Catalog struct {
	models []ModelDescriptor
	byID   map[string]int
}

// New copies models into a catalog. An empty list yields the built-in catalog.
func New(models []ModelDescriptor) *Catalog {
	if len(models) == 0 {
		models = Builtin
	}
	c := &Catalog{
		models: append([]ModelDescriptor(nil), models...),
		byID:   make(map[string]int, len(models)),
	}
	for i, m := range c.models {
		if _, dup := c.byID[m.ID]; !dup {
			c.byID[m.ID] = i
		}
	}
	return c
}

// FromConfig builds the catalog from a config override list.
func FromConfig(models []config.ModelConfig) *Catalog {
	out := make([]ModelDescriptor, 0, len(models))
	for _, m := range models {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		typ := ModelType(strings.ToLower(m.Type))
		if typ != TypePreview {
			typ = TypeProduction
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		out = append(out, ModelDescriptor{
			ID:            m.ID,
			Name:          name,
			Developer:     m.Developer,
			ContextWindow: m.ContextWindow,
			Type:          typ,
		})
	}
	return New(out)
}

// All returns a copy of the models in catalog order.
func (c *Catalog) All() []ModelDescriptor {
	return append([]ModelDescriptor(nil), c.models...)
}

// Default returns the first model.
func (c *Catalog) Default() ModelDescriptor {
	return c.models[0]
}

// Resolve looks up a model by exact id.
func (c *Catalog) Resolve(id string) (ModelDescriptor, error) {
	i, ok := c.byID[id]
	if !ok {
		return ModelDescriptor{}, errors.Wrapf(ErrUnknownModel, "%q", id)
	}
	return c.models[i], nil
}

// Lookup resolves id, falling back to a descriptor that only carries the id.
// Stored conversations may name models that have since left the catalog.
func (c *Catalog) Lookup(id string) ModelDescriptor {
	if m, err := c.Resolve(id); err == nil {
		return m
	}
	return ModelDescriptor{ID: id, Name: id, Type: TypeProduction}
}

// source implements fuzzy.Source over id and display name.
type source []ModelDescriptor

func (s source) String(i int) string { return s[i].ID + " " + s[i].Name }
func (s source) Len() int            { return len(s) }

// Find returns models matching query, best match first. An empty query returns all.
func (c *Catalog) Find(query string) []ModelDescriptor {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.All()
	}
	if m, err := c.Resolve(query); err == nil {
		return []ModelDescriptor{m}
	}
	matches := fuzzy.FindFrom(query, source(c.models))
	out := make([]ModelDescriptor, 0, len(matches))
	for _, match := range matches {
		out = append(out, c.models[match.Index])
	}
	return out
}
