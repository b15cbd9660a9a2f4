// Package sqlvalidator implements the static safety classifier described
// by the SQL Validator component: a single-statement parser-free check
// that permits SELECT and introspection pragmas and rejects everything
// else a defense-in-depth layer should catch before a query ever reaches
// a backend.
package sqlvalidator

import "strings"

// Lists holds the three deny-lists the classifier checks against, passed to
// New as data. The only source of lists in this module is LoadDefaultLists,
// whose values are literals in code; no configuration file is read.
type Lists struct {
	WriteKeywords        []string
	InjectionSignatures  []InjectionSignature
	SuspiciousIdentifiers []string
}

// InjectionSignature pairs a substring to search for with a human
// description used in the rejection reason.
type InjectionSignature struct {
	Pattern     string
	Description string
}

// LoadDefaultLists returns the built-in deny-lists named in §4.3. Nothing
// loads lists from a config file; Validator accepts any Lists value so the
// defaults are not hard-wired into the classification logic itself.
func LoadDefaultLists() Lists {
	return Lists{
		WriteKeywords: []string{
			"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
			"TRUNCATE", "REPLACE", "MERGE", "EXEC", "EXECUTE",
		},
		InjectionSignatures: []InjectionSignature{
			{"1=1", "always-true tautology"},
			{"OR 1=1", "always-true tautology"},
			{"AND 1=1", "always-true tautology"},
			{"OR '1'='1'", "always-true string tautology"},
			{"AND '1'='1'", "always-true string tautology"},
			{"WAITFOR", "time-delay injection probe"},
			{"SLEEP(", "time-delay injection probe"},
			{"BENCHMARK(", "time-delay injection probe"},
			{"LOAD_FILE(", "local file read"},
			{"INTO OUTFILE", "local file write"},
			{"INTO DUMPFILE", "local file write"},
		},
		SuspiciousIdentifiers: []string{
			"PASSWORD", "ADMIN", "USER", "LOGIN", "AUTH", "TOKEN",
			"CREDENTIAL", "SECRET", "KEY", "HASH", "SALT", "SESSION", "COOKIE",
		},
	}
}

// Validator classifies SQL strings against a fixed set of deny-lists.
type Validator struct {
	lists Lists
}

// New constructs a Validator from the given deny-lists.
func New(lists Lists) *Validator {
	return &Validator{lists: lists}
}

// Validate implements the eight-step algorithm from §4.3 and returns
// (safe, reason). reason is empty when safe is true.
func (v *Validator) Validate(sql string) (bool, string) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return false, "Empty query is not allowed"
	}

	statements := splitStatements(trimmed)
	if len(statements) > 1 {
		return false, "Multiple statements not allowed"
	}

	stmt := strings.TrimSpace(statements[0])
	upperStmt := strings.ToUpper(stmt)

	if strings.HasPrefix(upperStmt, "PRAGMA") {
		return true, ""
	}

	if !strings.HasPrefix(upperStmt, "SELECT") {
		return false, "Security Error: Only SELECT statements and PRAGMA introspection are allowed"
	}

	padded := " " + upperStmt + " "
	for _, kw := range v.lists.WriteKeywords {
		if strings.Contains(padded, " "+kw+" ") || strings.Contains(padded, " "+kw+"(") {
			return false, "Security Error: write keyword '" + kw + "' is not allowed; only SELECT queries are permitted"
		}
	}

	for _, sig := range v.lists.InjectionSignatures {
		if strings.Contains(upperStmt, strings.ToUpper(sig.Pattern)) {
			return false, "Security Error: query matches a known injection pattern (" + sig.Description + ")"
		}
	}

	for _, ident := range v.lists.SuspiciousIdentifiers {
		if containsWord(upperStmt, ident) {
			return false, "Security Error: identifier '" + ident + "' has no legitimate place in the clinical schema"
		}
	}

	return true, ""
}

// splitStatements performs a simple top-level-semicolon split, ignoring
// semicolons inside single-quoted string literals. It does not attempt to
// produce an AST; the sole purpose is the multi-statement guard in step 3.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case r == ';' && !inString:
			statements = append(statements, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	if len(statements) == 0 {
		statements = []string{""}
	}
	return statements
}

// containsWord reports whether ident appears in s as a standalone token
// (bounded by non-letter characters), avoiding false positives like
// matching KEY inside a column named "monkey_id".
func containsWord(s, ident string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], ident)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(ident)
		beforeOK := start == 0 || !isIdentChar(rune(s[start-1]))
		afterOK := end >= len(s) || !isIdentChar(rune(s[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isIdentChar(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}
