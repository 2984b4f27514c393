package services

import (
	"strings"

	"artist-census/utils"
)

// Normalizer turns a raw name list into the working set of artist names.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize trims and lower-cases every name, drops empty and bracketed
// entries, and removes duplicates keeping first occurrences in order.
// The base order matters: sampling shuffles it with a fixed seed.
func (n *Normalizer) Normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, len(raw))
	var empty, bracketed, dupes int

	for _, r := range raw {
		name := normaliseName(r)
		switch {
		case name == "":
			empty++
			continue
		case strings.ContainsAny(name, "[]"):
			// upstream marks non-artist entries like "[unknown]" this way
			bracketed++
			continue
		}

		if _, dup := seen[name]; dup {
			dupes++
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}

	n.logger.Info("[normalizer] Normalized %d → %d names (empty %d, bracketed %d, duplicate %d)",
		len(raw), len(result), empty, bracketed, dupes)
	return result
}

func normaliseName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
