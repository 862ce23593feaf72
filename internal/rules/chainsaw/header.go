package chainsaw

import (
	"strings"

	"github.com/bearer/tauhunt/internal/rules"
)

// normaliseStatus mirrors sigma's: "stable -> Stable, anything else ->
// Experimental" (spec.md section 4.2 reuses section 4.3's header rules).
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

// normaliseLevel mirrors sigma's level normalisation: only {critical,
// high, medium, low, info} accepted; missing -> info.
func normaliseLevel(raw string) (rules.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return rules.LevelInfo, true
	}
	lvl, ok := levelNames[raw]
	return lvl, ok
}
