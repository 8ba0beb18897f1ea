package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name returns the comparable form of a person name: trimmed, lower-cased,
// without diacritical marks and with whitespace runs collapsed to one space.
func Name(raw string) string {
	str := strings.ToLower(strings.TrimSpace(raw))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, str); err == nil {
		str = folded
	}

	return strings.Join(strings.Fields(str), " ")
}

// URL returns the comparable form of a profile link. The query component is
// dropped; input that doesn't parse as a URL is only trimmed and lower-cased.
func URL(raw string) string {
	str := strings.TrimSpace(raw)
	if str == "" {
		return ""
	}

	parsed, err := url.Parse(str)
	if err != nil {
		return strings.ToLower(str)
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	return strings.ToLower(parsed.String())
}

func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ContainsAny reports whether normalized contains one of the markers.
func ContainsAny(normalized string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(normalized, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
