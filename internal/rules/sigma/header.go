package sigma

import (
	"strings"

	"github.com/bearer/tauhunt/internal/rules"
)

// rawLogSource mirrors Sigma's `logsource` header block.
type rawLogSource struct {
	Category   string `yaml:"category"`
	Product    string `yaml:"product"`
	Service    string `yaml:"service"`
	Definition string `yaml:"definition"`
}

// normaliseStatus implements spec.md section 4.3: "stable -> Stable,
// anything else -> Experimental".
func normaliseStatus(raw string) rules.Status {
	if strings.EqualFold(strings.TrimSpace(raw), "stable") {
		return rules.StatusStable
	}
	return rules.StatusExperimental
}

var levelNames = map[string]rules.Level{
	"critical": rules.LevelCritical,
	"high":     rules.LevelHigh,
	"medium":   rules.LevelMedium,
	"low":      rules.LevelLow,
	"info":     rules.LevelInfo,
}

// normaliseLevel implements spec.md section 4.3: "only {critical, high,
// medium, low, info} accepted; missing -> info." An unrecognised
// non-empty level is a compile error (guarding the closed enum, in the
// spirit of Open Question 3's "document and reject anything else").
func normaliseLevel(raw string) (rules.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return rules.LevelInfo, true
	}
	lvl, ok := levelNames[raw]
	return lvl, ok
}

// splitAuthors implements spec.md section 4.3: "author (single string)
// is split on commas into authors; empty -> ['unknown']."
func splitAuthors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{"unknown"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"unknown"}
	}
	return out
}
