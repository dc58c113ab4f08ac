// internal/types/rules.go
package types

/*
 * Wire-format agnostic rule definitions.
 *
 * RuleSpec and HookSpec are what configuration files and API requests carry
 * before compilation. Compilation into predicate trees happens in
 * internal/pattern; the score and hook packages own the compiled forms.
 *
 * Value is kept as the raw token ("10", "-5", "=100") so the exact-score
 * prefix survives the trip through YAML and JSON unchanged.
 */

// RuleSpec is an uncompiled score rule.
type RuleSpec struct {
	Pattern string `mapstructure:"pattern"`
	Value   string `mapstructure:"value"`
}

// HookSpec is an uncompiled pattern hook.
type HookSpec struct {
	Type    string `mapstructure:"type"`
	Pattern string `mapstructure:"pattern"`
	Command string `mapstructure:"command"`
}
