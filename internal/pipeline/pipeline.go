// Package pipeline implements the M3 builder: an immutable, chainable
// composition of a Config and a list of Tools that can be built, run,
// serialized, and restored.
package pipeline

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/config"
	m3errors "github.com/m3-mcp/m3/internal/errors"
	"github.com/m3-mcp/m3/internal/hostconfig"
	"github.com/m3-mcp/m3/internal/mcpserver"
)

// Tool is the contract every pipeline member satisfies: own zero or more
// backends, declare required env vars, expose callable actions, and
// support lossless JSON round-trip.
type Tool interface {
	Name() string
	RequiredEnvVars() []config.RequiredEnvVar
	Actions() map[string]mcpserver.ActionSpec
	ToDict() map[string]any
	Initialize(ctx context.Context) error
	Close() error
	PostLoad(ctx context.Context) error
}

// Factory reconstructs a Tool of a known type tag from its serialized
// params. Registered once per tool type at process startup.
type Factory func(params map[string]any, cfg *config.Config, logger zerolog.Logger) (Tool, error)

var toolRegistry = map[string]Factory{}

// RegisterToolType adds a tool type tag to the registry used by Load. Call
// from an init() in the package defining the concrete tool.
func RegisterToolType(tag string, factory Factory) {
	toolRegistry[tag] = factory
}

// Pipeline is the ordered composition of a config and a list of tools. The
// zero value is not usable; construct with New.
type Pipeline struct {
	config *config.Config
	tools  []Tool
	server *mcpserver.Server
	logger zerolog.Logger
	built  bool
}

// New constructs an empty Pipeline around cfg (or a default config if nil).
func New(cfg *config.Config, logger zerolog.Logger) *Pipeline {
	if cfg == nil {
		cfg, _ = config.New("INFO", map[string]string{})
	}
	return &Pipeline{config: cfg, logger: logger}
}

// WithConfig returns a new Pipeline with config replaced; tools carry over.
func (p *Pipeline) WithConfig(cfg *config.Config) *Pipeline {
	return &Pipeline{config: cfg, tools: append([]Tool{}, p.tools...), server: p.server, logger: p.logger}
}

// WithTool returns a new Pipeline with tool appended.
func (p *Pipeline) WithTool(tool Tool) *Pipeline {
	return &Pipeline{config: p.config, tools: append(append([]Tool{}, p.tools...), tool), server: p.server, logger: p.logger}
}

// WithTools returns a new Pipeline with tools appended, in order.
func (p *Pipeline) WithTools(tools []Tool) *Pipeline {
	return &Pipeline{config: p.config, tools: append(append([]Tool{}, p.tools...), tools...), server: p.server, logger: p.logger}
}

// WithPreset returns a new Pipeline with the named preset's tools merged in.
// Unknown presets return a Preset error carrying a suggestion when one
// scores well against the known preset names.
func (p *Pipeline) WithPreset(name string, presetConfig *config.Config) (*Pipeline, error) {
	preset, ok := presetRegistry[name]
	if !ok {
		return nil, unknownNameError(m3errors.KindPreset, "preset", name, presetNames())
	}
	cfg := presetConfig
	if cfg == nil {
		cfg = p.config
	}
	tools, err := preset(cfg)
	if err != nil {
		return nil, m3errors.Wrap(m3errors.KindPreset, "failed to create preset '"+name+"'", err)
	}
	return &Pipeline{config: cfg, tools: append(append([]Tool{}, p.tools...), tools...), server: p.server, logger: p.logger}, nil
}

// Build validates config, initializes every tool, registers their actions
// on a lazily-constructed MCP server, and emits the requested host config.
func (p *Pipeline) Build(ctx context.Context, hostType string, opts hostconfig.Options) (*Pipeline, error) {
	if len(p.tools) == 0 {
		return nil, m3errors.Build(m3errors.Validation("at least one tool must be added"), "pipeline build failed")
	}

	reqs := make([]config.ToolRequirements, len(p.tools))
	for i, t := range p.tools {
		reqs[i] = t
	}
	if err := p.config.ValidateForTools(reqs); err != nil {
		return nil, m3errors.Build(err, "pipeline build failed")
	}

	server := p.server
	if server == nil {
		server = mcpserver.New(p.logger)
	}

	for _, t := range p.tools {
		if err := t.Initialize(ctx); err != nil {
			return nil, m3errors.Build(err, "tool initialization failed for "+t.Name())
		}
	}

	for _, t := range p.tools {
		for name, spec := range t.Actions() {
			if err := server.Register(name, spec); err != nil {
				return nil, m3errors.Build(err, "action registration failed for "+t.Name())
			}
		}
	}

	if _, err := hostconfig.Generate(hostType, opts); err != nil {
		return nil, m3errors.Build(err, "host config generation failed")
	}

	built := &Pipeline{config: p.config, tools: p.tools, server: server, logger: p.logger, built: true}
	return built, nil
}

// Run delegates to the MCP server loop. Precondition: Build. Tool backends
// are always torn down on exit, even on error.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.built {
		return m3errors.Build(nil, "call Build before Run")
	}
	defer p.teardown()

	p.logger.Info().Msg("starting MCP server")
	return p.server.ServeStdio(ctx)
}

func (p *Pipeline) teardown() {
	for _, t := range p.tools {
		if err := t.Close(); err != nil {
			p.logger.Error().Err(err).Str("tool", t.Name()).Msg("tool teardown failed")
		}
	}
}

// persistedDocument is the on-disk shape of a saved pipeline.
type persistedDocument struct {
	Config map[string]any            `json:"config"`
	Tools  []persistedTool            `json:"tools"`
}

type persistedTool struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Save writes the pipeline's config and tool params to path as JSON.
// Precondition: Build.
func (p *Pipeline) Save(path string) error {
	if !p.built {
		return m3errors.Build(nil, "call Build before Save")
	}

	doc := persistedDocument{Config: p.config.ToDict()}
	for _, t := range p.tools {
		doc.Tools = append(doc.Tools, persistedTool{Type: t.Name(), Params: t.ToDict()})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return m3errors.Build(err, "failed to serialize pipeline")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	p.logger.Info().Str("path", path).Msg("saved pipeline config")
	return nil
}

// Load reads a persisted pipeline from path, reconstructs its config and
// tools via the type registry, invokes each tool's PostLoad hook, and
// marks the result built.
func Load(ctx context.Context, path string, logger zerolog.Logger) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc persistedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, m3errors.Validation("invalid pipeline config: %v", err)
	}

	cfg, err := config.FromDict(doc.Config)
	if err != nil {
		return nil, m3errors.Validation("invalid pipeline config: %v", err)
	}

	tools := make([]Tool, 0, len(doc.Tools))
	for _, pt := range doc.Tools {
		factory, ok := toolRegistry[pt.Type]
		if !ok {
			return nil, m3errors.Validation("unknown tool type: %s", pt.Type)
		}
		tool, err := factory(pt.Params, cfg, logger)
		if err != nil {
			return nil, m3errors.Wrap(m3errors.KindValidation, "failed to reconstruct tool "+pt.Type, err)
		}
		tools = append(tools, tool)
	}

	server := mcpserver.New(logger)
	for _, t := range tools {
		if err := t.PostLoad(ctx); err != nil {
			return nil, m3errors.Wrap(m3errors.KindInitialization, "post-load failed for "+t.Name(), err)
		}
		for name, spec := range t.Actions() {
			if err := server.Register(name, spec); err != nil {
				return nil, m3errors.Wrap(m3errors.KindValidation, "action registration failed for "+t.Name(), err)
			}
		}
	}

	logger.Info().Str("path", path).Msg("pipeline loaded")
	return &Pipeline{config: cfg, tools: tools, server: server, logger: logger, built: true}, nil
}
