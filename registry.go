package intake

import (
	"fmt"
	"log/slog"
	"slices"
)

// Registry is the ordered list of compiled sections a wizard walks through.
type Registry struct {
	sections []*Section
	index    map[string]int
	engine   string
	schemas  SchemaGenerator
	logger   *slog.Logger
}

// NewRegistry compiles defs in order. Section ids must be unique and every
// expression must compile against the configured evaluator.
func NewRegistry(defs []SectionDefinition, opts ...Option) (*Registry, error) {
	cfg := applyOptions(opts)
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: registry needs at least one section", ErrInvalidDefinition)
	}
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	cfg.evaluator = evaluator
	env, err := cfg.compileEnv(nil)
	if err != nil {
		return nil, err
	}

	registry := &Registry{
		index:   make(map[string]int, len(defs)),
		engine:  evaluatorEngineName(evaluator),
		schemas: cfg.schemas,
		logger:  cfg.logger,
	}
	for _, def := range defs {
		section, err := compileSection(def, cfg, env)
		if err != nil {
			return nil, err
		}
		if _, dup := registry.index[section.id]; dup {
			return nil, fmt.Errorf("%w: duplicate section %q", ErrInvalidDefinition, section.id)
		}
		registry.index[section.id] = len(registry.sections)
		registry.sections = append(registry.sections, section)
	}
	cfg.logger.Debug("section registry compiled",
		slog.Int("sections", len(registry.sections)),
		slog.String("engine", registry.engine))
	return registry, nil
}

// MustRegistry is NewRegistry that panics on error, for static definitions.
func MustRegistry(defs []SectionDefinition, opts ...Option) *Registry {
	registry, err := NewRegistry(defs, opts...)
	if err != nil {
		panic(err)
	}
	return registry
}

func (r *Registry) Len() int { return len(r.sections) }

// Engine names the expression engine the sections compiled with.
func (r *Registry) Engine() string { return r.engine }

// Sections returns the compiled sections in registered order.
func (r *Registry) Sections() []*Section { return slices.Clone(r.sections) }

// IDs returns section ids in registered order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.sections))
	for i, section := range r.sections {
		ids[i] = section.id
	}
	return ids
}

func (r *Registry) Section(id string) (*Section, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, id)
	}
	return r.sections[i], nil
}

// Schema renders section id with the configured SchemaGenerator.
func (r *Registry) Schema(id string) (SchemaDocument, error) {
	section, err := r.Section(id)
	if err != nil {
		return SchemaDocument{}, err
	}
	return r.schemas.Generate(section)
}

// Position returns the index of id in registered order.
func (r *Registry) Position(id string) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// SectionInfo is one navigation item of the registry surface.
type SectionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Describe lists id and title of every section in registered order.
func (r *Registry) Describe() []SectionInfo {
	out := make([]SectionInfo, len(r.sections))
	for i, section := range r.sections {
		out[i] = SectionInfo{ID: section.id, Title: section.title}
	}
	return out
}
