// Package mimic implements the MIMIC-IV domain tool: schema discovery,
// table introspection, ad-hoc query execution, and three convenience
// accessors, all mediated through the SQL safety validator and an optional
// auth middleware.
package mimic

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/auth"
	"github.com/m3-mcp/m3/internal/backend"
	"github.com/m3-mcp/m3/internal/config"
	m3errors "github.com/m3-mcp/m3/internal/errors"
	"github.com/m3-mcp/m3/internal/mcpserver"
	"github.com/m3-mcp/m3/internal/sqlvalidator"
)

// Action is a single callable exposed as an MCP method.
type Action = auth.Action

const (
	backendKeyEmbedded = "embedded"
	backendKeyCloud     = "cloud"
)

// Tool is the MIMIC domain tool: it owns one or more backends keyed by tag,
// with exactly one active at a time (backendKey), and exposes six actions.
type Tool struct {
	backends   map[string]backend.Backend
	backendKey string
	config     *config.Config
	validator  *sqlvalidator.Validator
	auth       *auth.Auth
	logger     zerolog.Logger

	tableNames map[string]string
}

// Params mirrors the JSON shape persisted by ToDict/FromDict.
type Params struct {
	BackendKey string                   `json:"backend_key"`
	Backends   []BackendParams          `json:"backends"`
}

// BackendParams is one entry of the serialized backend list.
type BackendParams struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// New constructs a MIMIC tool. Construction fails if backendKey does not
// name one of the supplied backends.
func New(backends []backend.Backend, backendKey string, cfg *config.Config, a *auth.Auth, logger zerolog.Logger) (*Tool, error) {
	if cfg == nil {
		return nil, m3errors.Config("config is required")
	}

	t := &Tool{
		backends:   map[string]backend.Backend{},
		backendKey: backendKey,
		config:     cfg,
		validator:  sqlvalidator.New(sqlvalidator.LoadDefaultLists()),
		auth:       a,
		logger:     logger.With().Str("component", "mimic").Logger(),
		tableNames: map[string]string{},
	}

	for _, b := range backends {
		if e, ok := b.(*backend.Embedded); ok {
			e.SetLogger(t.logger)
		}
		t.backends[tagFor(b)] = b
	}

	if _, ok := t.backends[backendKey]; !ok {
		return nil, m3errors.Validation("invalid backend key: %s", backendKey)
	}

	return t, nil
}

// tagFor derives the registry tag for a backend instance: "embedded" for
// *backend.Embedded, "cloud" for *backend.Cloud.
func tagFor(b backend.Backend) string {
	switch b.(type) {
	case *backend.Embedded:
		return backendKeyEmbedded
	case *backend.Cloud:
		return backendKeyCloud
	default:
		return "unknown"
	}
}

// Name identifies this tool's type tag for pipeline serialization.
func (t *Tool) Name() string { return "mimic" }

// RequiredEnvVars implements config.ToolRequirements. Only the active
// backend's connection parameters are required; OAuth2 vars are required
// only when M3_OAUTH2_ENABLED is truthy, which the pipeline checks
// separately via the auth package's own construction.
func (t *Tool) RequiredEnvVars() []config.RequiredEnvVar {
	if t.backendKey == backendKeyCloud {
		return []config.RequiredEnvVar{
			{Key: "M3_PROJECT_ID", Required: true},
		}
	}
	return []config.RequiredEnvVar{
		{Key: "M3_DB_PATH", Required: true},
	}
}

// ToDict implements the lossless round-trip contract.
func (t *Tool) ToDict() map[string]any {
	backends := make([]any, 0, len(t.backends))
	for _, b := range t.backends {
		backends = append(backends, b.ToDict())
	}
	return map[string]any{
		"backend_key": t.backendKey,
		"backends":    backends,
	}
}

// FromDict reconstructs a Tool from its serialized params.
func FromDict(params map[string]any, cfg *config.Config, a *auth.Auth, logger zerolog.Logger) (*Tool, error) {
	backendKey, _ := params["backend_key"].(string)
	if backendKey == "" {
		return nil, m3errors.Validation("missing required param: backend_key")
	}

	rawBackends, _ := params["backends"].([]any)
	backends := make([]backend.Backend, 0, len(rawBackends))
	for _, rb := range rawBackends {
		entry, ok := rb.(map[string]any)
		if !ok {
			return nil, m3errors.Validation("malformed backend entry in mimic params")
		}
		kind, _ := entry["type"].(string)
		bParams, _ := entry["params"].(map[string]any)
		b, err := backend.FromDict(kind, bParams)
		if err != nil {
			return nil, m3errors.Wrap(m3errors.KindValidation, "failed to reconstruct mimic backend", err)
		}
		backends = append(backends, b)
	}

	return New(backends, backendKey, cfg, a, logger)
}

// Initialize opens every registered backend, then resolves the active
// backend's fully qualified table names. Must be called before Actions()
// is invoked.
func (t *Tool) Initialize(ctx context.Context) error {
	for tag, b := range t.backends {
		if err := b.Open(ctx); err != nil {
			return m3errors.Wrap(m3errors.KindInitialization, "failed to open backend "+tag, err)
		}
	}
	t.resolveTableNames()
	return nil
}

// Close tears down every registered backend. Failures are collected but do
// not stop teardown of the remaining backends.
func (t *Tool) Close() error {
	var firstErr error
	for _, b := range t.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tool) resolveTableNames() {
	if t.backendKey == backendKeyEmbedded {
		t.tableNames = map[string]string{
			"icustays":   t.config.Get("M3_ICUSTAYS_TABLE", "icu_icustays", false),
			"labevents":  t.config.Get("M3_LABEVENTS_TABLE", "hosp_labevents", false),
			"admissions": t.config.Get("M3_ADMISSIONS_TABLE", "hosp_admissions", false),
		}
		return
	}

	version := t.config.Get("M3_MIMIC_VERSION", "mimiciv_3_1", false)
	project := t.config.Get("M3_BIGQUERY_PROJECT", "physionet-data", false)
	t.tableNames = map[string]string{
		"icustays":   fmt.Sprintf("`%s.%s_icu.icustays`", project, version),
		"labevents":  fmt.Sprintf("`%s.%s_hosp.labevents`", project, version),
		"admissions": fmt.Sprintf("`%s.%s_hosp.admissions`", project, version),
	}
}

// PostLoad re-initializes derived state after the tool is rehydrated from a
// persisted pipeline: re-opens backends and re-resolves table names against
// the live config.
func (t *Tool) PostLoad(ctx context.Context) error {
	return t.Initialize(ctx)
}

func (t *Tool) activeBackend() backend.Backend {
	return t.backends[t.backendKey]
}

// backendInfo renders the short banner every schema/introspection action
// prefixes its output with, naming the active backend and its identifying
// path or project.
func (t *Tool) backendInfo() string {
	switch b := t.activeBackend().(type) {
	case *backend.Embedded:
		return fmt.Sprintf("Backend: embedded (DuckDB)\nDatabase path: %s\n", b.Path())
	case *backend.Cloud:
		return fmt.Sprintf("Backend: cloud (BigQuery)\nProject: %s\n", b.Project())
	default:
		return fmt.Sprintf("Backend: %s\n", t.backendKey)
	}
}

// actionDescriptions and actionParams together describe the six MCP
// actions' registration metadata; actionFuncs supplies their handlers.
var actionDescriptions = map[string]string{
	"get_database_schema":   "List the tables available in the active MIMIC-IV backend.",
	"get_table_info":        "Describe a table's columns and show a few sample rows.",
	"execute_mimic_query":   "Run a read-only SQL SELECT against the active backend.",
	"get_icu_stays":         "Fetch ICU stay records, optionally filtered by patient.",
	"get_lab_results":       "Fetch lab event records, optionally filtered by patient or lab item.",
	"get_race_distribution": "Summarize admission counts grouped by recorded race.",
}

func actionParams(name string) any {
	switch name {
	case "get_table_info":
		return TableInfoParams{}
	case "execute_mimic_query":
		return ExecuteQueryParams{}
	case "get_icu_stays":
		return ICUStaysParams{}
	case "get_lab_results":
		return LabResultsParams{}
	case "get_race_distribution":
		return RaceDistributionParams{}
	default:
		return DatabaseSchemaParams{}
	}
}

// Actions returns the six MCP actions, each wrapped by the auth middleware
// when one is configured and enabled, with a typed params schema for MCP
// tool registration.
func (t *Tool) Actions() map[string]mcpserver.ActionSpec {
	raw := map[string]Action{
		"get_database_schema":   t.getDatabaseSchema,
		"get_table_info":        t.getTableInfo,
		"execute_mimic_query":   t.executeMimicQuery,
		"get_icu_stays":         t.getICUStays,
		"get_lab_results":       t.getLabResults,
		"get_race_distribution": t.getRaceDistribution,
	}

	if t.auth != nil {
		middleware := t.auth.Middleware(func(ctx context.Context) string {
			return t.config.Get(t.auth.TokenEnvKey(), "", false)
		})
		for name, action := range raw {
			raw[name] = middleware(action)
		}
	}

	specs := make(map[string]mcpserver.ActionSpec, len(raw))
	for name, action := range raw {
		specs[name] = mcpserver.ActionSpec{
			Description: actionDescriptions[name],
			Params:      actionParams(name),
			Handler:     mcpserver.Action(action),
		}
	}
	return specs
}

// validateLimit enforces 0 < limit <= 1000, per the convenience accessors'
// shared contract.
func validateLimit(limit int) bool {
	return limit > 0 && limit <= 1000
}

func lowerContainsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
