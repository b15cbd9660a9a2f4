package mimic

// Typed parameter shapes used purely for JSON Schema reflection when
// registering each action as an MCP tool; the actions themselves still
// read from the loosely-typed map[string]any so a caller's literal
// arguments flow through unchanged.

// DatabaseSchemaParams takes no arguments.
type DatabaseSchemaParams struct{}

// TableInfoParams is the input to get_table_info.
type TableInfoParams struct {
	TableName  string `json:"table_name" jsonschema:"required,description=Name of the table to describe"`
	ShowSample *bool  `json:"show_sample,omitempty" jsonschema:"description=Include up to three sample rows (default true)"`
}

// ExecuteQueryParams is the input to execute_mimic_query.
type ExecuteQueryParams struct {
	SQL string `json:"sql" jsonschema:"required,description=A single read-only SELECT statement"`
}

// ICUStaysParams is the input to get_icu_stays.
type ICUStaysParams struct {
	Limit     *int `json:"limit,omitempty" jsonschema:"description=Maximum rows to return when patient_id is not given (1-1000, default 10)"`
	PatientID *int `json:"patient_id,omitempty" jsonschema:"description=Restrict to a single subject_id"`
}

// LabResultsParams is the input to get_lab_results.
type LabResultsParams struct {
	Limit     *int    `json:"limit,omitempty" jsonschema:"description=Maximum rows to return (1-1000, default 20)"`
	PatientID *int    `json:"patient_id,omitempty" jsonschema:"description=Restrict to a single subject_id"`
	LabItem   *string `json:"lab_item,omitempty" jsonschema:"description=Substring match against the lab event value column"`
}

// RaceDistributionParams is the input to get_race_distribution.
type RaceDistributionParams struct {
	Limit *int `json:"limit,omitempty" jsonschema:"description=Maximum distinct race buckets to return (1-1000, default 10)"`
}
