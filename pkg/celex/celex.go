// Package celex provides validation, normalization and classification of
// CELEX identifiers, the canonical citation keys used by the EUR-Lex CELLAR
// repository, plus helpers for interinstitutional procedure numbers.
package celex

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// celexPattern matches the general CELEX grammar:
	// sector, 4-digit year, 1-3 letter type code, serial, optional suffixes.
	celexPattern = regexp.MustCompile(`^[0-9CE][0-9]{4}[A-Z]{1,3}[0-9]{4,6}[A-Z]{0,3}[_\-]?[0-9]{0,9}$`)

	// consolidatedPattern matches consolidated (point-in-time) identifiers:
	// sector 0, regulation/directive/decision type, 8-digit as-of date suffix.
	// Example: 02016R0679-20210101.
	consolidatedPattern = regexp.MustCompile(`^(0)(\d{4}[RLD]\d{4})(-\d{8})$`)

	procedurePattern = regexp.MustCompile(`^[0-9]{4}/[0-9]{4}(\([a-zA-Z]{3}\)|/[a-zA-Z]{3})$`)
)

// Normalize trims surrounding whitespace and upper-cases a CELEX identifier.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// IsValid reports whether the identifier matches the CELEX grammar.
// The input is not normalized first; callers usually combine with Normalize
// or use Validate.
func IsValid(id string) bool {
	return celexPattern.MatchString(id)
}

// Validate normalizes the identifier and checks it against the CELEX
// grammar, returning the normalized form. Used as a gate before any
// network call.
func Validate(id string) (string, error) {
	normalized := Normalize(id)
	if !IsValid(normalized) {
		return "", fmt.Errorf("invalid CELEX identifier format: %q", normalized)
	}
	return normalized, nil
}

// IsConsolidated reports whether the identifier denotes a consolidated
// (point-in-time codified) text.
func IsConsolidated(id string) bool {
	return consolidatedPattern.MatchString(id)
}

// ToOriginal converts a consolidated identifier to the identifier of the
// original act: the sector digit becomes 3 and the as-of-date suffix is
// dropped. Returns an error for non-consolidated input.
func ToOriginal(consolidatedID string) (string, error) {
	normalized := Normalize(consolidatedID)
	match := consolidatedPattern.FindStringSubmatch(normalized)
	if match == nil {
		return "", fmt.Errorf("not a consolidated CELEX identifier: %q (expected 0YYYYXNNNN-YYYYMMDD, e.g. 02016R0679-20210101)", normalized)
	}
	return "3" + match[2], nil
}

// NormalizeProcedureNumber upper-cases an interinstitutional procedure
// number and rewrites the parenthesized form to the slash form,
// e.g. "2020/0361(cod)" -> "2020/0361/COD".
func NormalizeProcedureNumber(procedureNumber string) string {
	normalized := strings.ToUpper(strings.TrimSpace(procedureNumber))
	normalized = strings.ReplaceAll(normalized, "(", "/")
	normalized = strings.ReplaceAll(normalized, ")", "")
	return normalized
}

// IsValidProcedureNumber reports whether the value matches the
// interinstitutional procedure number grammar, e.g. "2020/0361(COD)".
func IsValidProcedureNumber(procedureNumber string) bool {
	return procedurePattern.MatchString(procedureNumber)
}
