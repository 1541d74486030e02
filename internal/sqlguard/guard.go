package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// blockedKeywords are rejected as whole-word tokens anywhere in the
// statement, case-insensitive, regardless of where the statement begins.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE", "ALTER",
	"CREATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

var blockedKeywordPatterns = buildKeywordPatterns(blockedKeywords)

func buildKeywordPatterns(keywords []string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(keywords))
	for _, kw := range keywords {
		patterns[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}

var leadingTokenPattern = regexp.MustCompile(`^(\S+)`)

// CheckReadOnly accepts only statements that begin with SELECT or WITH and
// contain none of the blocked keywords, a semicolon (multi-statement), or a
// comment marker (comment smuggling). It returns a nil error on acceptance
// and an error naming the offending keyword or rule on rejection.
func CheckReadOnly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("sqlguard: empty statement not allowed")
	}

	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("sqlguard: multiple statements not allowed (semicolon detected)")
	}
	if strings.Contains(trimmed, "--") {
		return fmt.Errorf("sqlguard: line comments not allowed (-- detected)")
	}
	if strings.Contains(trimmed, "/*") {
		return fmt.Errorf("sqlguard: block comments not allowed (/* detected)")
	}

	leading := leadingTokenPattern.FindString(trimmed)
	leadingUpper := strings.ToUpper(leading)
	if leadingUpper != "SELECT" && leadingUpper != "WITH" {
		return fmt.Errorf("sqlguard: statement must begin with SELECT or WITH, got %q", leading)
	}

	for _, kw := range blockedKeywords {
		if blockedKeywordPatterns[kw].MatchString(trimmed) {
			return fmt.Errorf("sqlguard: blocked keyword %q not allowed in read-only statements", kw)
		}
	}

	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.]{1,128}$`)

// SanitizeIdentifier accepts identifiers matching [A-Za-z0-9_.]{1,128} and
// returns them unchanged. The dot allows "schema.table" references. Callers
// must apply the dialect's native quoting after calling this, never as a
// substitute for it — bound parameters cover values, this covers names.
func SanitizeIdentifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("sqlguard: invalid identifier %q: must match [A-Za-z0-9_.]{1,128}", name)
	}
	return name, nil
}
