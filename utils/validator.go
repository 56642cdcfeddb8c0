// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword checks password strength
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	return true, ""
}

// SanitizeInput trims spaces and strips null bytes.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}

// MaxKeywordLength caps a single keyword or expertise tag, in runes.
const MaxKeywordLength = 64

// NormalizeKeywords lower-cases, trims and de-duplicates terms, keeping the
// first-seen order. Empty and over-long terms are dropped.
func NormalizeKeywords(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, term := range raw {
		term = strings.ToLower(SanitizeInput(term))
		term = strings.Join(strings.Fields(term), " ")
		if term == "" || utf8.RuneCountInString(term) > MaxKeywordLength || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
