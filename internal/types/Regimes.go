/*

This file contains the market regime descriptors the discovery engine optimizes
against. Each regime is a named stochastic price-process configuration; the
regime-shift variant carries a second profile that takes over mid-path.

*/

package types

// RegimeID identifies one market regime configuration.
type RegimeID string

const (
	RegimeLowVol  RegimeID = "low_vol"
	RegimeHighVol RegimeID = "high_vol"
	RegimeJump    RegimeID = "jump_diffusion"
	RegimeShift   RegimeID = "regime_shift"
)

// ShiftProfile is the second parameter set a regime-shift path switches to at a
// random changepoint. Drift is unchanged by the shift; only volatility and jump
// behavior move.
type ShiftProfile struct {
	Volatility    float64 `json:"volatility"`
	JumpIntensity float64 `json:"jump_intensity"`
	JumpMean      float64 `json:"jump_mean"`
	JumpStd       float64 `json:"jump_std"`
}

// RegimeConfig is an immutable descriptor of one simulated market condition.
// Volatility and drift are annualized; JumpIntensity is the expected number of
// jumps per year.
type RegimeConfig struct {
	ID            RegimeID      `json:"id"`
	Volatility    float64       `json:"volatility"`
	Drift         float64       `json:"drift"`
	JumpIntensity float64       `json:"jump_intensity"`
	JumpMean      float64       `json:"jump_mean"`
	JumpStd       float64       `json:"jump_std"`
	Shift         *ShiftProfile `json:"shift,omitempty"` // set only for the regime-shift variant
}

// DefaultRegimes returns the four regimes the engine searches across.
func DefaultRegimes() []RegimeConfig {
	return []RegimeConfig{
		{
			ID:         RegimeLowVol,
			Volatility: 0.30,
			Drift:      0.05,
		},
		{
			ID:         RegimeHighVol,
			Volatility: 1.20,
			Drift:      0.00,
		},
		{
			ID:            RegimeJump,
			Volatility:    0.60,
			Drift:         0.02,
			JumpIntensity: 25.0,
			JumpMean:      -0.01,
			JumpStd:       0.08,
		},
		{
			ID:            RegimeShift,
			Volatility:    0.35,
			Drift:         0.03,
			JumpIntensity: 5.0,
			JumpMean:      0.0,
			JumpStd:       0.04,
			Shift: &ShiftProfile{
				Volatility:    1.00,
				JumpIntensity: 40.0,
				JumpMean:      -0.02,
				JumpStd:       0.10,
			},
		},
	}
}

// KnownRegimeIDs returns the identifiers of every regime the engine knows
// about, in a stable order. Per-regime maps built from flat data must contain
// an entry for each of these, including regimes with no candidates yet.
func KnownRegimeIDs() []RegimeID {
	return []RegimeID{RegimeLowVol, RegimeHighVol, RegimeJump, RegimeShift}
}

// RegimeByID looks up a regime configuration by its identifier.
func RegimeByID(id RegimeID) (RegimeConfig, bool) {
	for _, r := range DefaultRegimes() {
		if r.ID == id {
			return r, true
		}
	}
	return RegimeConfig{}, false
}
