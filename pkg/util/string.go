package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const Ellipsis = "..."

// Truncate shortens s to at most max runes, replacing the tail with an
// ellipsis when it had to cut. max <= 0 disables the limit.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= len(Ellipsis) {
		return string([]rune(s)[:max])
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max-len(Ellipsis)]), isSpace) + Ellipsis
}

// Preview returns a single-line excerpt suitable for logs and notifications.
func Preview(s string, max int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), max)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Placeholders lists the distinct {name} placeholders used in template.
func Placeholders(template string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// RenderTemplate replaces {key} placeholders found in data. Placeholders
// without a matching key are left untouched.
func RenderTemplate(template string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := data[key]; ok {
			return v
		}
		return m
	})
}
