package synth

import (
	"math"
	"sync"

	"github.com/AltairaLabs/PoseKit/types"
)

// AnimationLength is the number of frames in the demo loop.
const AnimationLength = 120

const animConfidence = 0.95

var demoFrames = sync.OnceValue(buildDemoFrames)

// DemoFrames returns the precomputed COCO-17 demo loop. The slice is shared
// and must not be modified.
func DemoFrames() []types.Frame {
	return demoFrames()
}

// buildDemoFrames animates a forehand-style swing of the right arm with a
// gentle body sway.
func buildDemoFrames() []types.Frame {
	frames := make([]types.Frame, 0, AnimationLength)
	for f := 0; f < AnimationLength; f++ {
		t := float64(f) / AnimationLength
		phase := math.Sin(t * math.Pi * 4)
		sway := math.Sin(t*math.Pi*2) * 0.05

		kp := func(x, y, z float64) types.Keypoint {
			return types.Keypoint{X: x, Y: y, Z: z, Confidence: animConfidence}
		}
		frames = append(frames, types.Frame{
			kp(0.5+sway*0.3, 0.15, 0), // nose
			kp(0.48, 0.14, 0.01),
			kp(0.52, 0.14, 0.01),
			kp(0.46, 0.15, 0.02),
			kp(0.54, 0.15, 0.02),
			kp(0.42, 0.28+phase*0.02, 0), // shoulders
			kp(0.58, 0.28+phase*0.02, 0),
			kp(0.35+phase*0.08, 0.40+phase*0.12, -0.08-phase*0.15), // elbows
			kp(0.65, 0.42, 0.05),
			kp(0.28+phase*0.15, 0.38+phase*0.20, -0.15-phase*0.25), // wrists
			kp(0.70, 0.50, 0.08),
			kp(0.43, 0.55+sway*0.3, 0), // hips
			kp(0.57, 0.55+sway*0.3, 0),
			kp(0.41+sway*0.5, 0.75, 0.03), // knees
			kp(0.59-sway*0.5, 0.73, -0.03),
			kp(0.40+sway*0.6, 0.95, 0.02), // ankles
			kp(0.60-sway*0.6, 0.93, -0.02),
		})
	}
	return frames
}

// Animation cycles through DemoFrames. It is not safe for concurrent use.
type Animation struct {
	pos int
}

// Next returns a copy of the next frame, wrapping after the last one.
func (a *Animation) Next() types.Frame {
	frames := DemoFrames()
	f := frames[a.pos].Clone()
	a.pos = (a.pos + 1) % len(frames)
	return f
}

// Reset rewinds to the first frame.
func (a *Animation) Reset() {
	a.pos = 0
}
