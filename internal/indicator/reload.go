package indicator

import (
	"fmt"
	"log/slog"
)

// ReloadConfigs validates and swaps in a new configuration. It reports how
// many indicators carry over unchanged and how many are new, per TF.
func (e *Engine) ReloadConfigs(newConfigs []TFIndicatorConfig) (kept, added int, err error) {
	if err := ValidateConfigs(newConfigs); err != nil {
		return 0, 0, fmt.Errorf("reload: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	oldByTF := make(map[int]map[string]bool, len(e.configs))
	for _, cfg := range e.configs {
		oldByTF[cfg.TF] = indicatorSet(cfg.Indicators)
	}
	for _, cfg := range newConfigs {
		old := oldByTF[cfg.TF]
		for _, ic := range cfg.Indicators {
			if old[ic.Name()] {
				kept++
			} else {
				added++
			}
		}
		if old == nil {
			slog.Info("reload: new timeframe", "tf", cfg.TF, "indicators", len(cfg.Indicators))
		}
	}

	e.setConfigs(newConfigs)
	slog.Info("reload: config swapped", "tfs", len(newConfigs), "kept", kept, "added", added)
	return kept, added, nil
}

func indicatorSet(configs []IndicatorConfig) map[string]bool {
	set := make(map[string]bool, len(configs))
	for _, ic := range configs {
		set[ic.Name()] = true
	}
	return set
}

// KnownType reports whether t names an indicator Compute can evaluate.
func KnownType(t string) bool {
	if _, ok := calculators[t]; ok {
		return true
	}
	mt, err := ParseMAType(t)
	if err != nil {
		return false
	}
	return mt != FRAMA && mt != RMSMA
}

// ValidateConfigs checks a set of TFIndicatorConfigs for errors.
func ValidateConfigs(configs []TFIndicatorConfig) error {
	seen := make(map[int]bool)
	for _, cfg := range configs {
		if cfg.TF <= 0 {
			return fmt.Errorf("invalid TF=%d: must be positive", cfg.TF)
		}
		if seen[cfg.TF] {
			return fmt.Errorf("duplicate TF=%d", cfg.TF)
		}
		seen[cfg.TF] = true

		for _, ind := range cfg.Indicators {
			if !KnownType(ind.Type) {
				return fmt.Errorf("unknown indicator type %q for TF=%d", ind.Type, cfg.TF)
			}
			if ind.Period <= 0 {
				return fmt.Errorf("invalid period=%d for %s on TF=%d", ind.Period, ind.Type, cfg.TF)
			}
		}
	}
	return nil
}
