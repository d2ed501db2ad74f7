package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorCategory is the closed taxonomy of validation failures. Callers
// branch on the category, never on the message text.
type ErrorCategory string

const (
	ErrorNone                ErrorCategory = "none"
	ErrorEmptyQuery          ErrorCategory = "empty_query"
	ErrorDangerousKeyword    ErrorCategory = "dangerous_keyword"
	ErrorDisallowedStart     ErrorCategory = "disallowed_start"
	ErrorInjectionSemicolons ErrorCategory = "injection_semicolons"
	ErrorInjectionComments   ErrorCategory = "injection_comments"
	ErrorInvalidColumn       ErrorCategory = "invalid_column"
)

// ValidationResult is the outcome of validating one SQL statement.
type ValidationResult struct {
	IsValid        bool
	Category       ErrorCategory
	Message        string
	InvalidColumns []string
}

// dangerousKeywords matches write or DDL statements anywhere in the text,
// whole-word and case-insensitive.
var dangerousKeywords = regexp.MustCompile(
	`(?i)\b(DELETE|DROP|TRUNCATE|ALTER|CREATE|INSERT|UPDATE|GRANT|REVOKE|EXECUTE|EXEC)\b`)

// Validate checks model-generated SQL against the read-only policy and the
// catalog's known hallucination patterns. It never executes the SQL and
// never touches a database. This is a targeted heuristic, not a parser:
// anything it cannot prove dangerous and cannot match against a known
// mistake passes through.
func Validate(sqlText string, catalog *SchemaCatalog) ValidationResult {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return ValidationResult{
			Category: ErrorEmptyQuery,
			Message:  "query is empty",
		}
	}

	if m := dangerousKeywords.FindString(trimmed); m != "" {
		return ValidationResult{
			Category: ErrorDangerousKeyword,
			Message:  fmt.Sprintf("dangerous keyword %s is not allowed", strings.ToUpper(m)),
		}
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ValidationResult{
			Category: ErrorDisallowedStart,
			Message:  "only SELECT and WITH statements are allowed",
		}
	}

	if strings.Count(trimmed, ";") > 1 {
		return ValidationResult{
			Category: ErrorInjectionSemicolons,
			Message:  "multiple statements are not allowed",
		}
	}

	if strings.Count(trimmed, "--") > 2 || strings.Count(trimmed, "/*") > 1 {
		return ValidationResult{
			Category: ErrorInjectionComments,
			Message:  "comment markers suggest an injection attempt",
		}
	}

	var invalid []string
	var hints []string
	for _, corr := range catalog.Corrections() {
		if corr.pattern.MatchString(trimmed) {
			invalid = append(invalid, corr.Wrong)
			hints = append(hints, fmt.Sprintf("%s -> %s", corr.Wrong, corr.Correct))
		}
	}
	if len(invalid) > 0 {
		return ValidationResult{
			Category:       ErrorInvalidColumn,
			Message:        "unknown columns: " + strings.Join(hints, ", "),
			InvalidColumns: invalid,
		}
	}

	return ValidationResult{
		IsValid:  true,
		Category: ErrorNone,
		Message:  "ok",
	}
}
