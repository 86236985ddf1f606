package engine

import (
	"fmt"
	"time"
)

// EffectKind identifies a timed status effect slot. A board holds at most one
// effect per kind; installing a new one overwrites the old entry.
type EffectKind string

const (
	EffectTilt       EffectKind = "tilt"
	EffectLauncher   EffectKind = "launcher"
	EffectColorChurn EffectKind = "color_churn"
)

// LauncherVariant discriminates the broken-launcher effect
type LauncherVariant int

const (
	LauncherReversed LauncherVariant = 0 // left and right swapped
	LauncherLocked   LauncherVariant = 1 // no steering at all
	LauncherErratic  LauncherVariant = 2 // slow steering plus random jitter
	LauncherAutoFire LauncherVariant = 3 // fires on its own every few seconds

	launcherVariants = 4
)

func (v LauncherVariant) String() string {
	switch v {
	case LauncherReversed:
		return "reversed"
	case LauncherLocked:
		return "locked"
	case LauncherErratic:
		return "erratic"
	case LauncherAutoFire:
		return "auto_fire"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// StatusEffect is one active timed spell outcome
type StatusEffect struct {
	Kind      EffectKind      `json:"kind" msgpack:"kind"`
	EndTime   time.Time       `json:"endTime" msgpack:"endTime"`
	Variant   LauncherVariant `json:"variant,omitempty" msgpack:"variant,omitempty"`
	Direction int             `json:"direction,omitempty" msgpack:"direction,omitempty"`
	Angle     float64         `json:"angle,omitempty" msgpack:"angle,omitempty"` // degrees
}

// Active reports whether the effect is still running at now
func (s StatusEffect) Active(now time.Time) bool {
	return !now.After(s.EndTime)
}

// StatusEffects maps each active kind to its effect
type StatusEffects map[EffectKind]StatusEffect

// Clone returns an independent copy
func (s StatusEffects) Clone() StatusEffects {
	out := make(StatusEffects, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Has reports whether kind is present
func (s StatusEffects) Has(kind EffectKind) bool {
	_, ok := s[kind]
	return ok
}

// SweepEffects drops every effect whose end time has passed. The input is not
// modified. changed tells the caller whether anything expired.
func SweepEffects(effects StatusEffects, now time.Time) (pruned StatusEffects, changed bool) {
	pruned = make(StatusEffects, len(effects))
	for k, v := range effects {
		if now.After(v.EndTime) {
			changed = true
			continue
		}
		pruned[k] = v
	}
	return pruned, changed
}
