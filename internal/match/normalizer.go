package match

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Mode selects how raw VM names are reduced to canonical comparison keys.
type Mode string

const (
	// ModeExact trims and lowercases the name.
	ModeExact Mode = "exact"
	// ModeHostname keeps only the short hostname before the first dot.
	ModeHostname Mode = "hostname"
	// ModeRegex extracts capture group 1 of a configured pattern.
	ModeRegex Mode = "regex"
)

// ParseMode maps a configured string to a Mode, defaulting to exact.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeHostname:
		return ModeHostname
	case ModeRegex:
		return ModeRegex
	default:
		return ModeExact
	}
}

// Normalizer maps raw VM names to canonical keys. A Normalizer is constructed
// once per operation so every call site within that operation applies the
// same mode and pattern; it is safe for concurrent use.
type Normalizer struct {
	mode Mode
	re   *regexp.Regexp
}

// NewNormalizer builds a Normalizer for the given mode and pattern. A
// malformed regex pattern is logged and the normalizer degrades to returning
// the trimmed, lowercased input; it never fails the caller.
func NewNormalizer(mode Mode, pattern string) *Normalizer {
	n := &Normalizer{mode: mode}
	if mode == ModeRegex && pattern != "" {
		// Case-insensitive, anchored at the start of the name. The
		// non-capturing wrapper keeps group 1 as the caller's group 1.
		re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
		if err != nil {
			zap.S().Named("match").Warnf("invalid name matching pattern %q, names are used as-is: %v", pattern, err)
		} else {
			n.re = re
		}
	}
	return n
}

// Normalize returns the canonical comparison key for name. Empty input yields
// an empty string. The result is deterministic and always lowercase.
func (n *Normalizer) Normalize(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}

	switch n.mode {
	case ModeHostname:
		if idx := strings.Index(trimmed, "."); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[:idx])
		}
	case ModeRegex:
		if n.re != nil {
			groups := n.re.FindStringSubmatch(trimmed)
			// A pattern without a capture group, or one that does not
			// match, leaves the name untouched.
			if len(groups) > 1 && groups[1] != "" {
				trimmed = groups[1]
			}
		}
	}

	return strings.ToLower(trimmed)
}

// Normalize is a convenience for one-off normalization with an ad-hoc mode
// and pattern.
func Normalize(name string, mode Mode, pattern string) string {
	return NewNormalizer(mode, pattern).Normalize(name)
}
