// Package strings holds the small string canonicalization helpers shared by
// submission and lookup paths.
package strings

import (
	"strings"
)

// NormalizeCode canonicalizes a species or methodology code: trimmed,
// lowercased, inner spaces collapsed to underscores. "Rhizophora Mucronata"
// and "rhizophora_mucronata" resolve to the same table entry.
func NormalizeCode(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, "_")
}

// DedupeTags canonicalizes a tag list: each tag trimmed and lowercased,
// empties dropped, duplicates removed with first-seen order preserved.
func DedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
