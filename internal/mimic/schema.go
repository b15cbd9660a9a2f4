package mimic

import (
	"context"
	"fmt"
	"strings"
)

// getDatabaseSchema implements action get_database_schema: lists all tables
// (Embedded) or unions INFORMATION_SCHEMA.TABLES across the active
// dataset's configured child datasets (Cloud), prefixed by the backend
// banner.
func (t *Tool) getDatabaseSchema(ctx context.Context, params map[string]any) (string, error) {
	info := t.backendInfo()

	if t.backendKey == backendKeyEmbedded {
		query := "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name"
		result, err := t.activeBackend().Execute(ctx, query)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s\nAvailable Tables:\n%s", info, result), nil
	}

	project := t.config.Get("M3_BIGQUERY_PROJECT", "physionet-data", false)
	hospDataset := t.config.Get("M3_BIGQUERY_HOSP_DATASET", "mimiciv_3_1_hosp", false)
	icuDataset := t.config.Get("M3_BIGQUERY_ICU_DATASET", "mimiciv_3_1_icu", false)

	query := fmt.Sprintf(`
SELECT CONCAT('`+"`"+`%s.%s.', table_name, '`+"`"+`') AS query_ready_table_name
FROM `+"`"+`%s.%s.INFORMATION_SCHEMA.TABLES`+"`"+`
UNION ALL
SELECT CONCAT('`+"`"+`%s.%s.', table_name, '`+"`"+`') AS query_ready_table_name
FROM `+"`"+`%s.%s.INFORMATION_SCHEMA.TABLES`+"`"+`
ORDER BY query_ready_table_name`,
		project, hospDataset, project, hospDataset,
		project, icuDataset, project, icuDataset)

	result, err := t.activeBackend().Execute(ctx, query)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\nAvailable Tables (query-ready names):\n%s\n\nThese table names can be used directly in your SQL queries.", info, result), nil
}

// getTableInfo implements action get_table_info: column metadata plus up to
// three sample rows. Cloud accepts either a simple name (searched across
// configured child datasets) or a fully-qualified name with exactly three
// dot-parts.
func (t *Tool) getTableInfo(ctx context.Context, params map[string]any) (string, error) {
	tableName, _ := params["table_name"].(string)
	if tableName == "" {
		return "", fmt.Errorf("table_name is required")
	}
	showSample := true
	if v, ok := params["show_sample"].(bool); ok {
		showSample = v
	}

	info := t.backendInfo()

	if t.backendKey == backendKeyEmbedded {
		pragmaQuery := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
		result, err := t.activeBackend().Execute(ctx, pragmaQuery)
		if err != nil {
			return fmt.Sprintf("%sError examining table '%s': %v\n\nUse get_database_schema() to see available tables.", info, tableName, err), nil
		}
		out := fmt.Sprintf("%sTable: %s\n\nColumn Information:\n%s", info, tableName, result)
		if showSample {
			sampleQuery := fmt.Sprintf("SELECT * FROM %s LIMIT 3", tableName)
			sample, err := t.activeBackend().Execute(ctx, sampleQuery)
			if err == nil {
				out += fmt.Sprintf("\n\nSample Data (first 3 rows):\n%s", sample)
			}
		}
		return out, nil
	}

	return t.getCloudTableInfo(ctx, info, tableName, showSample)
}

func (t *Tool) getCloudTableInfo(ctx context.Context, info, tableName string, showSample bool) (string, error) {
	project := t.config.Get("M3_BIGQUERY_PROJECT", "physionet-data", false)

	if strings.Contains(tableName, ".") && strings.Contains(tableName, project) {
		clean := strings.Trim(tableName, "`")
		parts := strings.Split(clean, ".")
		if len(parts) != 3 {
			return fmt.Sprintf("%sInvalid qualified table name: %s\n\nExpected format: project.dataset.table\nExample: %s.mimiciv_3_1_hosp.diagnoses_icd", info, tableName, project), nil
		}
		dataset := parts[0] + "." + parts[1]
		simpleTable := parts[2]
		fullTable := "`" + clean + "`"

		if result, ok := t.tryCloudTableInfo(ctx, info, dataset, fullTable, simpleTable, showSample); ok {
			return result, nil
		}
	}

	simpleTable := tableName
	for _, dataset := range []string{
		t.config.Get("M3_BIGQUERY_HOSP_DATASET", "mimiciv_3_1_hosp", false),
		t.config.Get("M3_BIGQUERY_ICU_DATASET", "mimiciv_3_1_icu", false),
	} {
		fullDataset := project + "." + dataset
		fullTable := fmt.Sprintf("`%s.%s`", fullDataset, simpleTable)
		if result, ok := t.tryCloudTableInfo(ctx, info, fullDataset, fullTable, simpleTable, showSample); ok {
			return result, nil
		}
	}

	return fmt.Sprintf("%sTable '%s' not found in any dataset. Use get_database_schema() to see available tables.", info, tableName), nil
}

func (t *Tool) tryCloudTableInfo(ctx context.Context, info, dataset, fullTable, simpleTable string, showSample bool) (string, bool) {
	infoQuery := fmt.Sprintf(`
SELECT column_name, data_type, is_nullable
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE table_name = '%s'
ORDER BY ordinal_position`, dataset, simpleTable)

	result, err := t.activeBackend().Execute(ctx, infoQuery)
	if err != nil || strings.Contains(result, "No results found") {
		return "", false
	}

	out := fmt.Sprintf("%sTable: %s\n\nColumn Information:\n%s", info, fullTable, result)
	if showSample {
		sampleQuery := fmt.Sprintf("SELECT * FROM %s LIMIT 3", fullTable)
		sample, err := t.activeBackend().Execute(ctx, sampleQuery)
		if err == nil {
			out += fmt.Sprintf("\n\nSample Data (first 3 rows):\n%s", sample)
		}
	}
	return out, true
}
