package composer

import (
	"strings"
	"unicode"
)

// ParseTimecode converts "SS", "MM:SS" or "HH:MM:SS" to whole seconds. Each
// part is read as a leading integer ("05s" is 5). Empty input, too many parts
// or any part without leading digits yields 0.
func ParseTimecode(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, ok := LeadingInt(part)
		if !ok {
			return 0
		}
		total = total*60 + n
	}
	if total < 0 {
		return 0
	}
	return total
}

// LeadingInt parses the optionally signed run of ASCII digits at the start of
// s, ignoring surrounding whitespace and any trailing text ("80%" is 80).
func LeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		n = n*10 + int(s[digits]-'0')
		digits++
		if n > 1<<31 {
			break
		}
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
