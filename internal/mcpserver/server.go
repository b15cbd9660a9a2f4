// Package mcpserver binds a pipeline's registered actions to an MCP stdio
// transport: every action becomes one MCP tool whose input schema is
// reflected from a typed Go params struct, and whose result is rendered as
// plain text.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/pkg/version"
)

// Action is a single callable exposed as an MCP tool: params is the
// caller-supplied argument object, decoded from JSON; the return value is
// rendered as the tool's text result.
type Action func(ctx context.Context, params map[string]any) (string, error)

// ActionSpec pairs an Action with the metadata needed to register it as an
// MCP tool: a one-line description, and a zero-value instance of the typed
// struct its input schema should be reflected from.
type ActionSpec struct {
	Description string
	Params      any
	Handler     Action
}

// Server wraps an MCP server instance and the actions registered on it.
type Server struct {
	mcp    *server.MCPServer
	logger zerolog.Logger
	names  []string
}

// New constructs an empty MCP server ready for Register calls.
func New(logger zerolog.Logger) *Server {
	return &Server{
		mcp:    server.NewMCPServer("m3", version.Version, server.WithToolCapabilities(true)),
		logger: logger.With().Str("component", "mcpserver").Logger(),
	}
}

// Register exposes spec as an MCP tool named name, with its input schema
// reflected from spec.Params.
func (s *Server) Register(name string, spec ActionSpec) error {
	schemaBytes, err := reflectSchema(spec.Params)
	if err != nil {
		return fmt.Errorf("failed to build schema for tool %s: %w", name, err)
	}

	tool := mcp.NewToolWithRawSchema(name, spec.Description, schemaBytes)
	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := map[string]any{}
		if request.Params.Arguments != nil {
			argBytes, err := json.Marshal(request.Params.Arguments)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to marshal arguments: %v", err)), nil
			}
			if err := json.Unmarshal(argBytes, &params); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to parse arguments: %v", err)), nil
			}
		}

		callID := uuid.New().String()
		log := s.logger.With().Str("call_id", callID).Str("tool", name).Logger()
		log.Info().Msg("tool call started")

		result, err := spec.Handler(ctx, params)
		if err != nil {
			log.Error().Err(err).Msg("tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		log.Info().Msg("tool call completed")
		return mcp.NewToolResultText(result), nil
	})
	s.names = append(s.names, name)
	return nil
}

// reflectSchema generates a JSON Schema document from a Go type, following
// the reflect-then-marshal pattern for typed MCP tool inputs. A nil params
// value reflects to an open object accepting arbitrary named arguments.
func reflectSchema(params any) ([]byte, error) {
	if params == nil {
		return []byte(`{"type":"object","additionalProperties":true}`), nil
	}
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(params)
	return json.Marshal(schema)
}

// Names returns every tool name registered so far.
func (s *Server) Names() []string {
	return append([]string(nil), s.names...)
}

// ServeStdio blocks serving MCP requests over stdio until the transport
// closes. The underlying library manages its own signal handling; ctx is
// accepted for interface symmetry with the rest of the pipeline.
func (s *Server) ServeStdio(_ context.Context) error {
	s.logger.Info().Strs("tools", s.names).Msg("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}
