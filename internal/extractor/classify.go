package extractor

import "strings"

var authMarkers = []string{
	"sign in to confirm",
	"not a bot",
	"http error 403",
	"403 forbidden",
	"status code 403",
	"members-only",
	"private video",
	"confirm your age",
	"use --cookies",
}

// AuthDetail reports whether a diagnostic message means the site wants credentials,
// and returns a one-line summary when it does.
func AuthDetail(message string) (string, bool) {
	if message == "" {
		return "", false
	}
	lowered := strings.ToLower(message)
	for _, marker := range authMarkers {
		if strings.Contains(lowered, marker) {
			return Summarize(message), true
		}
	}
	return "", false
}

// Summarize picks the first error line of a diagnostic, falling back to the first non-empty line.
func Summarize(message string) string {
	first := ""
	for _, line := range strings.Split(message, "\n") {
		cleaned := strings.TrimSpace(line)
		if cleaned == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(cleaned), "error:") {
			return clip(strings.TrimSpace(cleaned[6:]), 240)
		}
		if first == "" {
			first = cleaned
		}
	}
	if first == "" {
		return "Probe failed"
	}
	return clip(first, 240)
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
