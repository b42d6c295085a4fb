package llm

import (
	"errors"
	"fmt"
	"sort"

	"NewsDesk/pkg/config"
)

const DefaultTier = "standard"

// ErrUnknownTier is returned for a tier name with no configured models.
var ErrUnknownTier = errors.New("unknown model tier")

// Tier is the resolved model pair for one pipeline run.
type Tier struct {
	Name string
	config.TierConfig
}

// ResolveTier looks up name in tiers. An empty name selects DefaultTier.
func ResolveTier(tiers map[string]config.TierConfig, name string) (Tier, error) {
	if name == "" {
		name = DefaultTier
	}
	tc, ok := tiers[name]
	if !ok {
		known := make([]string, 0, len(tiers))
		for k := range tiers {
			known = append(known, k)
		}
		sort.Strings(known)
		return Tier{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownTier, name, known)
	}
	return Tier{Name: name, TierConfig: tc}, nil
}
