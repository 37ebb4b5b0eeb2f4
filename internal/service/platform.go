package service

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

type platformMapping struct {
	re   *regexp.Regexp
	slug string
}

// PlatformMapper maps guest OS names to platform slugs through an ordered
// list of "pattern=slug" entries. The first matching pattern wins.
type PlatformMapper struct {
	mappings []platformMapping
}

// NewPlatformMapper parses the configured mapping entries. Malformed entries
// or patterns are logged and skipped, never fatal.
func NewPlatformMapper(entries []string) *PlatformMapper {
	m := &PlatformMapper{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		pattern, slug, found := strings.Cut(entry, "=")
		if !found || strings.TrimSpace(pattern) == "" || strings.TrimSpace(slug) == "" {
			zap.S().Named("service").Warnf("malformed platform mapping %q, expected pattern=slug", entry)
			continue
		}

		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			zap.S().Named("service").Warnf("invalid platform mapping pattern %q: %v", pattern, err)
			continue
		}

		m.mappings = append(m.mappings, platformMapping{re: re, slug: strings.TrimSpace(slug)})
	}
	return m
}

// SlugFor returns the platform slug for a guest OS name, or "" when no
// mapping matches.
func (m *PlatformMapper) SlugFor(guestOS string) string {
	if guestOS == "" {
		return ""
	}
	for _, mapping := range m.mappings {
		if mapping.re.MatchString(guestOS) {
			return mapping.slug
		}
	}
	return ""
}
