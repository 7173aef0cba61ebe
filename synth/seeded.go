// Package synth produces deterministic training data for demo users and the
// live sample stream that drives demo sessions.
//
// Historical data is seeded: the same user and date always yield the same
// values, across calls and process restarts. Live samples and the demo pose
// animation are not seeded.
package synth

import (
	"math"
	"unicode/utf16"
)

// Seeded maps seed to a pseudo-random value in [0,1).
//
// The seed is hashed over its UTF-16 code units with h = h*31 + unit in wrapping
// 32-bit arithmetic, and the fractional part of sin(h)*10000 is returned.
func Seeded(seed string) float64 {
	var h int32
	for _, unit := range utf16.Encode([]rune(seed)) {
		h = h*31 + int32(unit)
	}
	x := math.Sin(float64(h)) * 10000
	return x - math.Floor(x)
}

// SeededRange maps Seeded(seed) linearly onto [lo, hi).
func SeededRange(seed string, lo, hi float64) float64 {
	return lo + Seeded(seed)*(hi-lo)
}
