package matching

import (
	"regexp"
	"strings"
)

var tokenSeparators = regexp.MustCompile(`[\s,]+`)

// BranchTokens splits a free-text field-of-interest string into lowercase
// tokens. Duplicates are dropped; first-seen order is kept so results are
// deterministic.
func BranchTokens(raw string) []string {
	raw = strings.ToLower(raw)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := tokenSeparators.Split(raw, -1)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
