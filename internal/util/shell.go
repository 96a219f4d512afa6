// Package util provides common utility functions used across the codebase.
package util

import "strings"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellCommand appends each arg, single-quoted, to base. base is used as-is
// so a configured command line like "terrain-inspector dump --raw" keeps its
// own word splitting.
func ShellCommand(base string, args ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(base))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(ShellQuote(a))
	}
	return b.String()
}

// CommandName returns the first word of a command line, the binary a
// remote host must have on its PATH.
func CommandName(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
