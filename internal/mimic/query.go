package mimic

import (
	"context"
	"fmt"
	"strings"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// executeMimicQuery implements action execute_mimic_query: validates the
// SQL, and on rejection returns structured remediation text — a dedicated
// DESCRIBE/SHOW redirect to get_table_info, or the general "SELECT only"
// guidance. On backend failure, inspects the error text for known failure
// shapes and tailors the "how to fix" steps.
func (t *Tool) executeMimicQuery(ctx context.Context, params map[string]any) (string, error) {
	sql, _ := params["sql"].(string)
	if sql == "" {
		sql, _ = params["sql_query"].(string)
	}

	safe, message := t.validator.Validate(sql)
	if !safe {
		if lowerContainsAny(sql, "describe", "show") {
			return m3errors.Remediation(
				"Security Error: "+message,
				message,
				"Use get_table_info('table_name') instead of DESCRIBE — it shows columns, types, AND sample data.",
				"get_database_schema() — see available tables",
				"get_table_info('table_name') — explore structure",
				"execute_mimic_query('SELECT ...') — run your analysis",
			), nil
		}
		return m3errors.Remediation(
			"Security Error: "+message,
			message,
			"Only SELECT statements are allowed for data analysis.",
		), nil
	}

	result, err := t.activeBackend().Execute(ctx, sql)
	if err == nil {
		return result, nil
	}

	return t.formatQueryFailure(err, sql), nil
}

func (t *Tool) formatQueryFailure(err error, sql string) string {
	errMsg := strings.ToLower(err.Error())
	var suggestions []string

	if strings.Contains(errMsg, "no such table") || strings.Contains(errMsg, "table not found") || strings.Contains(errMsg, "does not exist") {
		suggestions = append(suggestions,
			"Table name issue: use get_database_schema() to see exact table names",
			fmt.Sprintf("Backend-specific naming: %s has specific table naming conventions", t.backendKey),
			"Quick fix: check if the table name matches exactly (case-sensitive)",
		)
	}
	if strings.Contains(errMsg, "no such column") || strings.Contains(errMsg, "column not found") || strings.Contains(errMsg, "unknown column") {
		suggestions = append(suggestions,
			"Column name issue: use get_table_info('table_name') to see available columns",
			"Common issue: column might be named differently (e.g. 'anchor_age' not 'age')",
			"Check sample data: get_table_info() shows actual column names and sample values",
		)
	}
	if strings.Contains(errMsg, "syntax error") {
		suggestions = append(suggestions,
			"SQL syntax issue: check quotes, commas, and parentheses",
			fmt.Sprintf("Backend syntax: verify your SQL works with %s", t.backendKey),
			"Try simpler: start with 'SELECT * FROM table_name LIMIT 5'",
		)
	}
	if strings.Contains(errMsg, "describe") || strings.Contains(errMsg, "show") {
		suggestions = append(suggestions,
			"Schema exploration: use get_table_info('table_name') instead of DESCRIBE",
			"Better approach: get_table_info() shows columns AND sample data",
		)
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Start exploration: use get_database_schema() to see available tables",
			"Check structure: use get_table_info('table_name') to understand the data",
		)
	}

	return m3errors.Remediation(
		"Query Failed",
		err.Error(),
		append(suggestions, fmt.Sprintf("Current backend: %s — table names and syntax are backend-specific", t.backendKey))...,
	)
}
