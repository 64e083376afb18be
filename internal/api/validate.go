package api

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFieldLen is the longest webhook field value kept in the event log.
const maxFieldLen = 256

// sanitizeField trims a webhook value, drops control characters and caps it
// at maxFieldLen runes. Webhook input is never rejected, only cleaned.
func sanitizeField(value string) string {
	value = strings.TrimSpace(value)
	if containsControlChars(value) {
		value = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, value)
	}
	if !utf8.ValidString(value) {
		value = strings.ToValidUTF8(value, "")
	}
	if utf8.RuneCountInString(value) > maxFieldLen {
		value = string([]rune(value)[:maxFieldLen])
	}
	return value
}

// containsControlChars checks if a string contains ASCII control characters
// (except tab, newline, carriage return).
func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
		if r == 0x7f {
			return true
		}
	}
	return false
}
