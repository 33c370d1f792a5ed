package validate

import "regexp"

// attackPattern pairs a compiled signature with the label reported in
// validation errors and audit events.
type attackPattern struct {
	name string
	re   *regexp.Regexp
}

// Signature scanning is a coarse, best-effort signal only. It does not
// replace parameterized queries or output encoding at the real trust
// boundary; it exists to catch obvious probes early and feed the reputation
// store.
var attackPatterns = []attackPattern{
	{
		name: "sql_injection",
		re:   regexp.MustCompile(`(?i)(\bunion\b[\s\S]*\bselect\b|\bselect\b[\s\S]*\bfrom\b|\binsert\s+into\b|\bdrop\s+table\b|\bdelete\s+from\b|'\s*or\s+'|--\s|\bexec\s*\()`),
	},
	{
		name: "script_injection",
		re:   regexp.MustCompile(`(?i)(<\s*script|javascript\s*:|\bon(?:error|load|click|mouseover)\s*=)`),
	},
	{
		name: "shell_command",
		re:   regexp.MustCompile(`(?i)\b(wget|curl|bash|/bin/sh|nc\s+-|netcat|chmod\s+\+x|rm\s+-rf)\b`),
	},
	{
		name: "path_traversal",
		re:   regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f)`),
	},
}

// matchAttackPattern returns the name of the first matching signature, or ""
// when the value is clean.
func matchAttackPattern(value string) string {
	for _, p := range attackPatterns {
		if p.re.MatchString(value) {
			return p.name
		}
	}
	return ""
}
