// Package hostconfig writes the three minimal MCP host config JSON blobs
// (local-stdio, desktop-host, universal). Per the original spec these
// writers are thin external glue; the values they need are computed by the
// pipeline and passed in through Options.
package hostconfig

import (
	"encoding/json"
	"os"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// Options carries the values a host-config writer needs: how to invoke the
// server process, and where (if anywhere) to write the result.
type Options struct {
	Command   string
	Args      []string
	Cwd       string
	SavePath  string
}

const (
	TypeLocalStdio  = "local-stdio"
	TypeDesktopHost = "desktop-host"
	TypeUniversal   = "universal"
)

// Generate renders the named host config type and, if opts.SavePath is
// non-empty, writes it to disk as JSON.
func Generate(hostType string, opts Options) (map[string]any, error) {
	var doc map[string]any
	switch hostType {
	case TypeLocalStdio:
		doc = localStdio(opts)
	case TypeDesktopHost:
		doc = desktopHost(opts)
	case TypeUniversal:
		doc = universal(opts)
	default:
		return nil, m3errors.Validation("unknown host config type: %s", hostType)
	}

	if opts.SavePath != "" {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, m3errors.Validation("failed to serialize host config: %v", err)
		}
		if err := os.WriteFile(opts.SavePath, data, 0o644); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func localStdio(opts Options) map[string]any {
	return map[string]any{
		"command": opts.Command,
		"args":    opts.Args,
		"cwd":     opts.Cwd,
	}
}

func desktopHost(opts Options) map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"m3": map[string]any{
				"command": opts.Command,
				"args":    opts.Args,
			},
		},
	}
}

func universal(opts Options) map[string]any {
	return map[string]any{
		"type":    "mcp",
		"command": opts.Command,
		"args":    opts.Args,
		"cwd":     opts.Cwd,
	}
}
