package ics

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// fallbackFilename is used when a label sanitizes down to nothing.
	fallbackFilename = "event"
	// maxFilenameBytes leaves room for the ".ics" suffix under the usual
	// 255-byte limit of common filesystems.
	maxFilenameBytes = 200
)

// SanitizeFilename maps an arbitrary label onto a filename that is safe on
// common filesystems. Path separators, reserved punctuation and control
// characters become "_"; leading/trailing spaces and dots are trimmed.
// Inner spaces are kept, so "My Meeting" stays "My Meeting".
func SanitizeFilename(label string) string {
	s := norm.NFC.String(label)

	s = strings.Map(func(r rune) rune {
		switch {
		case r == utf8.RuneError:
			return '_'
		case unicode.IsControl(r):
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)

	s = strings.Trim(s, " .")
	if len(s) > maxFilenameBytes {
		s = truncateRunes(s, maxFilenameBytes)
		s = strings.TrimRight(s, " .")
	}
	if s == "" {
		return fallbackFilename
	}
	return s
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
