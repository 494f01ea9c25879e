// Package textutil provides text formatting helpers for log output.
package textutil

import "strings"

// Indent prefixes every non-empty line of s with prefix.
//
// Used to indent captured encoder output inside warning logs so multi-line
// diagnostics stay visually attached to the log line that introduced them.
//
// Example:
//
//	Indent("a\nb", "    ")  // "    a\n    b"
func Indent(s, prefix string) string {
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
