package openapi

import "strings"

// SectionPlaceholder is replaced with the section id in operation paths,
// operation ids and the root component name.
const SectionPlaceholder = "{section}"

type generatorConfig struct {
	openAPIVersion string
	info           documentInfo
	operation      saveOperation
	contentType    string
	responses      map[string]response
	rootComponent  string
}

type documentInfo struct {
	Title       string
	Version     string
	Description string
}

// saveOperation describes the single request a section document exposes:
// the call that persists the section payload.
type saveOperation struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
}

type response struct {
	Description string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info:           documentInfo{Title: "Intake Section " + SectionPlaceholder, Version: "1.0.0"},
		operation:      saveOperation{Path: "/sections/" + SectionPlaceholder + "/payload", Method: "put"},
		contentType:    "application/json",
		rootComponent:  SectionPlaceholder + "Payload",
		responses: map[string]response{
			"200": {Description: "Section saved"},
			"422": {Description: "Section failed validation"},
			"503": {Description: "Record store unavailable"},
		},
	}
}

// forSection returns a copy of cfg with the section placeholder expanded.
func (cfg generatorConfig) forSection(id string) generatorConfig {
	r := strings.NewReplacer(SectionPlaceholder, id)
	out := cfg
	out.info.Title = r.Replace(cfg.info.Title)
	out.operation.Path = r.Replace(cfg.operation.Path)
	out.operation.OperationID = r.Replace(cfg.operation.OperationID)
	out.operation.Summary = r.Replace(cfg.operation.Summary)
	out.rootComponent = r.Replace(cfg.rootComponent)
	out.responses = make(map[string]response, len(cfg.responses))
	for status, resp := range cfg.responses {
		out.responses[status] = resp
	}
	return out
}

// GeneratorOption configures the OpenAPI generator.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the document version (default 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// InfoOption sets optional info fields.
type InfoOption func(*documentInfo)

func WithInfoDescription(description string) InfoOption {
	return func(info *documentInfo) { info.Description = description }
}

// WithInfo sets the info block. Empty values keep the defaults and the
// title may use SectionPlaceholder.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.info.Title = orDefault(title, cfg.info.Title)
		cfg.info.Version = orDefault(version, cfg.info.Version)
		for _, opt := range opts {
			opt(&cfg.info)
		}
	}
}

// OperationOption sets optional fields on the save operation.
type OperationOption func(*saveOperation)

func WithOperationSummary(summary string) OperationOption {
	return func(op *saveOperation) { op.Summary = summary }
}

// WithOperation overrides the save operation. Path, operation id and
// summary may use SectionPlaceholder.
func WithOperation(path, method, operationID string, opts ...OperationOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.operation.Path = orDefault(path, cfg.operation.Path)
		cfg.operation.Method = orDefault(strings.ToLower(method), cfg.operation.Method)
		cfg.operation.OperationID = orDefault(operationID, cfg.operation.OperationID)
		for _, opt := range opts {
			opt(&cfg.operation)
		}
	}
}

// WithContentType sets the request body media type.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.contentType = orDefault(contentType, cfg.contentType)
	}
}

// WithResponse adds or replaces the response documented for status.
func WithResponse(status, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		if cfg.responses == nil {
			cfg.responses = map[string]response{}
		}
		cfg.responses[status] = response{Description: description}
	}
}

// WithRootComponent names the component the section payload is published
// under. An empty name inlines the payload schema in the request body.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootComponent = name
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
