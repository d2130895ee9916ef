package timer

// Status effect ids reported by the host.
const (
	// EffectLucidDreaming regenerates on its own schedule, masking the value signal.
	EffectLucidDreaming uint16 = 1204

	// EffectCircleOfPower shortens cast times.
	EffectCircleOfPower uint16 = 738
)

// GaugePhase is the job gauge's elemental phase.
type GaugePhase int

const (
	// PhaseNeutral has no effect on regeneration.
	PhaseNeutral GaugePhase = iota

	// PhaseAstralFire suppresses periodic regeneration; value gains in this
	// phase do not mark a tick.
	PhaseAstralFire

	// PhaseUmbralIce boosts regeneration and is the phase the commit
	// threshold is shown in.
	PhaseUmbralIce
)

// String returns the string representation of GaugePhase.
func (p GaugePhase) String() string {
	switch p {
	case PhaseAstralFire:
		return "astral_fire"
	case PhaseUmbralIce:
		return "umbral_ice"
	default:
		return "neutral"
	}
}

// StatusFlags are the per-cycle status inputs of the estimator and predictor.
type StatusFlags struct {
	// LucidLike means periodic regeneration is guaranteed independently of
	// the value signal, so value inference is skipped.
	LucidLike bool

	// RegenSuppressed means value increases come from a non-periodic source.
	RegenSuppressed bool

	// Accelerant shortens the timed action.
	Accelerant bool

	// RegenFavorable means the threshold is meaningful this cycle.
	RegenFavorable bool
}

// StatusFromEffects decodes raw status effect ids and the gauge phase.
func StatusFromEffects(effectIDs []uint16, phase GaugePhase) StatusFlags {
	flags := StatusFlags{
		RegenSuppressed: phase == PhaseAstralFire,
		RegenFavorable:  phase == PhaseUmbralIce,
	}

	for _, id := range effectIDs {
		switch id {
		case EffectLucidDreaming:
			flags.LucidLike = true
		case EffectCircleOfPower:
			flags.Accelerant = true
		}
	}

	return flags
}
