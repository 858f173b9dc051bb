package model

import (
	"regexp"
	"strings"
)

var sharedPostURN = regexp.MustCompile(`urn:li:share:(\d+)`)

// ExtractSharedPostID returns the digits of the first urn:li:share:<digits>
// token in message.
func ExtractSharedPostID(message string) (string, bool) {
	m := sharedPostURN.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MentionsDuplicate reports whether message carries LinkedIn's duplicate-content wording.
func MentionsDuplicate(message string) bool {
	return strings.Contains(strings.ToLower(message), "duplicate")
}
