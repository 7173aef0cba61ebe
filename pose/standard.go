package pose

import "github.com/AltairaLabs/PoseKit/types"

// COCO-17 indices used by swing analysis.
const (
	Nose          = 0
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftKnee      = 13
	RightKnee     = 14
)

const peakWristHeight = 0.4

// IsPeak reports whether the racket wrist has just passed its highest point:
// it was above peakWristHeight in prev and has dropped in cur.
func IsPeak(cur, prev types.Frame) bool {
	if len(cur) < COCO17.Size || len(prev) < COCO17.Size {
		return false
	}
	prevY := prev[RightWrist].Y
	return prevY < cur[RightWrist].Y && prevY < peakWristHeight
}

// ReferencePose is the fixed overhead-clear pose used for side-by-side comparison.
var ReferencePose = types.Frame{
	{X: 0.50, Y: 0.15, Z: 0, Confidence: 0.95},
	{X: 0.48, Y: 0.14, Z: 0.01, Confidence: 0.95},
	{X: 0.52, Y: 0.14, Z: 0.01, Confidence: 0.95},
	{X: 0.46, Y: 0.15, Z: 0.02, Confidence: 0.95},
	{X: 0.54, Y: 0.15, Z: 0.02, Confidence: 0.95},
	{X: 0.42, Y: 0.28, Z: 0, Confidence: 0.95},
	{X: 0.58, Y: 0.28, Z: 0, Confidence: 0.95},
	{X: 0.35, Y: 0.35, Z: -0.15, Confidence: 0.95},
	{X: 0.65, Y: 0.20, Z: 0.15, Confidence: 0.95},
	{X: 0.28, Y: 0.38, Z: -0.25, Confidence: 0.95},
	{X: 0.70, Y: 0.10, Z: 0.25, Confidence: 0.95},
	{X: 0.43, Y: 0.55, Z: 0, Confidence: 0.95},
	{X: 0.57, Y: 0.55, Z: 0, Confidence: 0.95},
	{X: 0.41, Y: 0.75, Z: 0.03, Confidence: 0.95},
	{X: 0.59, Y: 0.73, Z: -0.03, Confidence: 0.95},
	{X: 0.40, Y: 0.95, Z: 0.02, Confidence: 0.95},
	{X: 0.60, Y: 0.93, Z: -0.02, Confidence: 0.95},
}

// Standardize returns a coached version of a COCO-17 frame: raised racket arm,
// balanced off arm, deeper knees and an upright head. Short frames are
// returned unchanged.
func Standardize(frame types.Frame) types.Frame {
	if len(frame) < COCO17.Size {
		return frame
	}
	out := frame.Clone()

	if out[RightWrist].Y < 0.4 {
		out[RightElbow].Y *= 0.85
		out[RightWrist].Y *= 0.75
		out[RightWrist].Z *= 1.2
	}
	if out[LeftWrist].Y < 0.5 {
		out[LeftElbow].Y *= 0.92
		out[LeftWrist].Y *= 0.90
	}
	if out[LeftKnee].Y > 0.7 {
		out[LeftKnee].Y *= 0.97
		out[RightKnee].Y *= 0.97
	}

	shoulderY := (out[LeftShoulder].Y + out[RightShoulder].Y) / 2
	if shoulderY-out[Nose].Y < 0.15 {
		for i := 0; i <= 4; i++ {
			out[i].Y -= 0.02
		}
	}
	return out
}
