// Package backend implements the uniform execute(sql)->text contract over
// the two interchangeable storage variants: Embedded (a single-file
// analytical database over Parquet) and Cloud (BigQuery).
package backend

import (
	"context"
	"fmt"
	"strings"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// State is the backend lifecycle: uninitialized -> open -> closed (and
// back to open again, since a closed backend can be re-opened).
type State int

const (
	StateUninitialized State = iota
	StateOpen
	StateClosed
)

// Backend is the contract every storage variant implements.
type Backend interface {
	// Open establishes the connection/client. Open is safe to call again
	// after Close.
	Open(ctx context.Context) error
	// Close releases the connection/client. Close on an unopened or
	// already-closed backend is a no-op.
	Close() error
	// Execute runs sql synchronously and returns the formatted text
	// result. Execute fails if the backend is not open.
	Execute(ctx context.Context, sql string) (string, error)
	// ToDict returns only the connection parameters, never the live handle.
	ToDict() map[string]any
	// State reports the current lifecycle state.
	State() State
}

// FromDict reconstructs a Backend from its serialized {"type":..., "params":...}
// form, dispatching on the "type" discriminator ("embedded" or "cloud").
func FromDict(kind string, params map[string]any) (Backend, error) {
	switch kind {
	case "embedded":
		path, _ := params["path"].(string)
		if path == "" {
			return nil, m3errors.Validation("embedded backend requires a non-empty 'path' param")
		}
		return NewEmbedded(path), nil
	case "cloud":
		project, _ := params["project"].(string)
		if project == "" {
			return nil, m3errors.Validation("cloud backend requires a non-empty 'project' param")
		}
		return NewCloud(project), nil
	default:
		return nil, m3errors.Validation("unknown backend type: %s", kind)
	}
}

// FormatResult renders a result set as a fixed-width text table, truncating
// to the first 50 rows with a trailer, or returning the literal
// "No results found" string when there are no rows. This is shared by
// every backend variant so the wire-visible text is identical regardless
// of which engine produced it.
func FormatResult(columns []string, rows [][]any) string {
	if len(rows) == 0 {
		return "No results found"
	}

	truncated := rows
	var trailer string
	if len(rows) > 50 {
		truncated = rows[:50]
		trailer = fmt.Sprintf("\n... (%d total rows, showing first 50)", len(rows))
	}

	widths := make([]int, len(columns))
	cellStrings := make([][]string, len(truncated))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for r, row := range truncated {
		cellStrings[r] = make([]string, len(columns))
		for i, v := range row {
			s := formatCell(v)
			cellStrings[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var sb strings.Builder
	for i, col := range columns {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(padLeft(col, widths[i]))
	}
	for _, row := range cellStrings {
		sb.WriteByte('\n')
		for i, cell := range row {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(padLeft(cell, widths[i]))
		}
	}
	sb.WriteString(trailer)
	return sb.String()
}

func formatCell(v any) string {
	if v == nil {
		return "NaN"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
