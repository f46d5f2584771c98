// Package strfmt provides text block formatting.
package strfmt

import "strings"

// Dedent removes leading and trailing blank lines and the common leading
// indentation of all non-blank lines. CRLF line endings become LF,
// anything else after the indentation is kept verbatim.
// Indentation relative to the least indented line is preserved,
// which keeps indentation-sensitive content such as YAML intact.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	minInd := -1
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		if indent := leadingWhitespace(line); minInd == -1 || indent < minInd {
			minInd = indent
		}
	}
	for i, line := range lines {
		lines[i] = line[min(minInd, leadingWhitespace(line)):]
	}
	return strings.Join(lines, "\n")
}

func isBlank(s string) bool { return leadingWhitespace(s) == len(s) }

func leadingWhitespace(s string) (count int) {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			break
		}
		count++
	}
	return count
}
