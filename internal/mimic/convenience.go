package mimic

import (
	"context"
	"fmt"
	"strings"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

const invalidLimitMessage = "Error: Invalid limit. Must be a positive integer between 1 and 1000."

// getICUStays implements action get_icu_stays.
func (t *Tool) getICUStays(ctx context.Context, params map[string]any) (string, error) {
	limit := intParam(params, "limit", 10)
	if !validateLimit(limit) {
		return invalidLimitMessage, nil
	}

	table := t.tableNames["icustays"]
	var query string
	if patientID, ok := intOrNil(params, "patient_id"); ok {
		query = fmt.Sprintf("SELECT * FROM %s WHERE subject_id = %d", table, patientID)
	} else {
		query = fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, limit)
	}

	result, err := t.activeBackend().Execute(ctx, query)
	if err != nil {
		return t.convenienceFailure(err.Error()), nil
	}
	if lowerContainsAny(result, "error", "not found") {
		return t.convenienceFailure(result), nil
	}
	return result, nil
}

// getLabResults implements action get_lab_results.
func (t *Tool) getLabResults(ctx context.Context, params map[string]any) (string, error) {
	limit := intParam(params, "limit", 20)
	if !validateLimit(limit) {
		return invalidLimitMessage, nil
	}

	table := t.tableNames["labevents"]
	var conditions []string
	if patientID, ok := intOrNil(params, "patient_id"); ok {
		conditions = append(conditions, fmt.Sprintf("subject_id = %d", patientID))
	}
	if labItem, ok := params["lab_item"].(string); ok && labItem != "" {
		escaped := strings.ReplaceAll(labItem, "'", "''")
		conditions = append(conditions, fmt.Sprintf("value LIKE '%%%s%%'", escaped))
	}

	query := "SELECT * FROM " + table
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	result, err := t.activeBackend().Execute(ctx, query)
	if err != nil {
		return t.convenienceFailure(err.Error()), nil
	}
	if lowerContainsAny(result, "error", "not found") {
		return t.convenienceFailure(result), nil
	}
	return result, nil
}

// getRaceDistribution implements action get_race_distribution.
func (t *Tool) getRaceDistribution(ctx context.Context, params map[string]any) (string, error) {
	limit := intParam(params, "limit", 10)
	if !validateLimit(limit) {
		return invalidLimitMessage, nil
	}

	table := t.tableNames["admissions"]
	query := fmt.Sprintf("SELECT race, COUNT(*) as count FROM %s GROUP BY race ORDER BY count DESC LIMIT %d", table, limit)

	result, err := t.activeBackend().Execute(ctx, query)
	if err != nil {
		return t.convenienceFailure(err.Error()), nil
	}
	if lowerContainsAny(result, "error", "not found") {
		return t.convenienceFailure(result), nil
	}
	return result, nil
}

func (t *Tool) convenienceFailure(detail string) string {
	return m3errors.Remediation(
		"Convenience function failed",
		detail,
		"get_database_schema() — see actual table names",
		"get_table_info('table_name') — understand structure",
		"execute_mimic_query('your_sql') — use exact names",
	)
}

func intParam(params map[string]any, key string, def int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

func intOrNil(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
