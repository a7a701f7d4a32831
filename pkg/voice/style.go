// Package voice selects synthesis styling from sentiment and time of day.
package voice

import (
	"github.com/carevoice/companion/pkg/ai/sentiment"
)

// Style names understood by the synthesis providers.
const (
	StyleExcited        = "Excited"
	StyleSoft           = "Soft"
	StyleConversational = "Conversational"
)

// Style is a derived synthesis decision. Never persisted.
type Style struct {
	ID    string  // provider style name
	Rate  float32 // speech rate multiplier
	Pitch float32 // pitch delta from base
}

// Config holds the styling policy knobs.
type Config struct {
	SundowningHour int     // hour of day (24h) after which the calming override applies
	BaseRate       float32 // normal speech rate multiplier
	BasePitch      float32 // normal pitch delta
	CalmRateScale  float32 // applied to rate after sundowning hour
	CalmPitchDelta float32 // applied to pitch after sundowning hour
}

// DefaultConfig returns the stock styling policy: calming voice from 5pm.
func DefaultConfig() Config {
	return Config{
		SundowningHour: 17,
		BaseRate:       1.0,
		BasePitch:      0.0,
		CalmRateScale:  0.9,
		CalmPitchDelta: -0.1,
	}
}

// Select maps sentiment and hour-of-day to a style decision. Pure and total.
//
// After the sundowning hour the calming style wins regardless of sentiment,
// with the rate slowed and pitch lowered: late-day comfort is a safety
// concern, not mood matching. Before it, a sad user still gets the soft
// style but at the normal rate.
func Select(s sentiment.Label, hour int, cfg Config) Style {
	if hour >= cfg.SundowningHour {
		return Style{
			ID:    StyleSoft,
			Rate:  cfg.BaseRate * cfg.CalmRateScale,
			Pitch: cfg.BasePitch + cfg.CalmPitchDelta,
		}
	}

	style := Style{Rate: cfg.BaseRate, Pitch: cfg.BasePitch}
	switch s {
	case sentiment.Sad:
		style.ID = StyleSoft
	case sentiment.Happy:
		style.ID = StyleExcited
	default:
		style.ID = StyleConversational
	}
	return style
}
