// Package types defines the shared telemetry data model: keypoints and pose
// frames, the metrics snapshot and its partial updates, transport envelopes,
// and session status.
package types

import (
	"encoding/json"
	"fmt"
)

// ConfidenceThreshold is the minimum confidence for a keypoint to be trusted.
// Keypoints below it, and any skeletal edge touching them, are suppressed.
const ConfidenceThreshold = 0.3

// Keypoint is one detected joint. X and Y are normalized to [0,1] relative to the
// source frame, Z is a signed relative depth and Confidence lies in [0,1].
//
// On the wire a keypoint is a JSON array [x, y, z, confidence]; three-element
// arrays are accepted with confidence 1.
type Keypoint struct {
	X          float64
	Y          float64
	Z          float64
	Confidence float64
}

// Reliable reports whether the keypoint meets ConfidenceThreshold.
func (k Keypoint) Reliable() bool {
	return k.Confidence >= ConfidenceThreshold
}

// MarshalJSON encodes the keypoint as a 4-element array.
func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{k.X, k.Y, k.Z, k.Confidence})
}

// UnmarshalJSON decodes a 3- or 4-element numeric array.
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("keypoint: %w", err)
	}
	switch len(values) {
	case 3:
		*k = Keypoint{X: values[0], Y: values[1], Z: values[2], Confidence: 1}
	case 4:
		*k = Keypoint{X: values[0], Y: values[1], Z: values[2], Confidence: values[3]}
	default:
		return fmt.Errorf("keypoint: expected 3 or 4 values, got %d", len(values))
	}
	return nil
}

// Frame is one sampled body pose: an ordered keypoint sequence whose length and
// index meaning are fixed by a pose layout.
type Frame []Keypoint

// Clone returns an independent copy of the frame. A nil frame stays nil.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	copy(out, f)
	return out
}
