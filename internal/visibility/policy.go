// Package visibility decides whether the tick estimate should be surfaced.
// It never gates the estimator itself.
package visibility

// Role identifies the controlled entity's class/job.
type Role uint32

// SupportedRole is the only job whose regeneration mechanic is tracked.
const SupportedRole Role = 25

// Preferences are the user's read-only display settings.
type Preferences struct {
	Enabled                     bool `mapstructure:"enabled"`
	HideOutOfCombat             bool `mapstructure:"hide_out_of_combat"`
	AlwaysShowInDuty            bool `mapstructure:"always_show_in_duty"`
	AlwaysShowWithHostileTarget bool `mapstructure:"always_show_with_hostile_target"`
}

// Conditions are the host-supplied session flags for one cycle.
type Conditions struct {
	Role          Role
	InCombat      bool
	BoundByDuty   bool
	HostileTarget bool
}

// IsVisible reports whether outputs should be considered live.
// The duty and hostile-target overrides only lift the out-of-combat filter;
// the master switch still applies.
func IsVisible(cond Conditions, prefs Preferences) bool {
	if cond.Role != SupportedRole {
		return false
	}

	if prefs.HideOutOfCombat && !cond.InCombat {
		inDuty := prefs.AlwaysShowInDuty && cond.BoundByDuty
		withTarget := prefs.AlwaysShowWithHostileTarget && cond.HostileTarget
		if !inDuty && !withTarget {
			return false
		}
	}

	return prefs.Enabled
}
