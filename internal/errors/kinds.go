package errors

import "fmt"

// Kind is a closed enumeration of the error categories a tool action, the
// pipeline builder, or the auth middleware can surface. Each kind carries a
// distinct remediation story; see Remediation.
type Kind int

const (
	// KindConfig covers missing/invalid env vars, merge conflicts, bad log levels.
	KindConfig Kind = iota
	// KindValidation covers bad pipeline JSON, unknown tool type, bad SQL, unknown preset/backend.
	KindValidation
	// KindInitialization covers backend open failure, missing database file, cloud client creation failure.
	KindInitialization
	// KindAuthentication covers missing token, malformed JWT, signature failure, wrong aud/iss, expired, missing scopes, rate limit.
	KindAuthentication
	// KindBuild covers validation or initialization failure bubbled up during pipeline Build.
	KindBuild
	// KindPreset covers unknown preset or preset-creation failure.
	KindPreset
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "Config"
	case KindValidation:
		return "Validation"
	case KindInitialization:
		return "Initialization"
	case KindAuthentication:
		return "Authentication"
	case KindBuild:
		return "Build"
	case KindPreset:
		return "Preset"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type for every Kind. It carries an optional
// cause chain via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config, Validation, Initialization, Authentication, Build, and Preset are
// convenience constructors matching the six kinds above.
func Config(format string, args ...any) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Initialization(format string, args ...any) *Error {
	return New(KindInitialization, fmt.Sprintf(format, args...))
}

func Authentication(format string, args ...any) *Error {
	return New(KindAuthentication, fmt.Sprintf(format, args...))
}

func Build(cause error, format string, args ...any) *Error {
	return Wrap(KindBuild, fmt.Sprintf(format, args...), cause)
}

func Preset(format string, args ...any) *Error {
	return New(KindPreset, fmt.Sprintf(format, args...))
}

// Remediation renders the three-part user-facing text required by every
// tool action result: a one-sentence diagnosis, the original message
// verbatim, and a short numbered recovery recipe pointing at the
// exploration tools.
func Remediation(diagnosis, originalMessage string, recipe ...string) string {
	out := diagnosis + "\n\nOriginal error: " + originalMessage + "\n\nHow to fix:\n"
	for i, step := range recipe {
		out += fmt.Sprintf("%d. %s\n", i+1, step)
	}
	return out
}

// DefaultRecipe is the recipe used whenever a failure has no more specific
// guidance: point the caller at the two exploration tools.
var DefaultRecipe = []string{
	"Call get_database_schema to see the available tables.",
	"Call get_table_info with a table name to see its columns and a sample of its rows.",
	"Adjust the query to match the real schema and try again.",
}
