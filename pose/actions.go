package pose

import "github.com/AltairaLabs/PoseKit/types"

// Stance names one of the coached badminton body positions.
type Stance string

// Coached stances.
const (
	StanceReady    Stance = "ready"
	StanceOverhead Stance = "overhead"
	StanceDefence  Stance = "defence"
	StanceDrive    Stance = "drive"
)

const stanceConfidence = 0.95

// stanceTables hold x, y, z per COCO-17 keypoint, as seen facing the player.
var stanceTables = map[Stance][17][3]float64{
	StanceOverhead: {
		{0.50, 0.15, 0}, {0.48, 0.14, 0.01}, {0.52, 0.14, 0.01}, {0.46, 0.15, 0.02}, {0.54, 0.15, 0.02},
		{0.42, 0.28, 0}, {0.58, 0.28, 0},
		{0.35, 0.35, -0.15}, {0.65, 0.22, 0.10},
		{0.28, 0.38, -0.25}, {0.70, 0.12, 0.18},
		{0.43, 0.55, 0}, {0.57, 0.55, 0},
		{0.41, 0.75, 0.03}, {0.59, 0.73, -0.03},
		{0.40, 0.95, 0.02}, {0.60, 0.93, -0.02},
	},
	StanceDefence: {
		{0.50, 0.35, 0}, {0.48, 0.34, 0.01}, {0.52, 0.34, 0.01}, {0.46, 0.35, 0.02}, {0.54, 0.35, 0.02},
		{0.40, 0.48, 0}, {0.60, 0.48, 0},
		{0.32, 0.58, -0.12}, {0.68, 0.58, 0.12},
		{0.25, 0.68, -0.20}, {0.75, 0.68, 0.20},
		{0.42, 0.65, 0}, {0.58, 0.65, 0},
		{0.38, 0.82, 0.05}, {0.62, 0.80, -0.05},
		{0.36, 0.96, 0.03}, {0.64, 0.94, -0.03},
	},
	StanceDrive: {
		{0.50, 0.20, 0}, {0.48, 0.19, 0.01}, {0.52, 0.19, 0.01}, {0.46, 0.20, 0.02}, {0.54, 0.20, 0.02},
		{0.42, 0.33, 0}, {0.58, 0.33, 0},
		{0.36, 0.42, -0.10}, {0.64, 0.35, 0.15},
		{0.30, 0.45, -0.15}, {0.72, 0.35, 0.25},
		{0.43, 0.58, 0}, {0.57, 0.58, 0},
		{0.41, 0.78, 0.03}, {0.59, 0.76, -0.03},
		{0.40, 0.96, 0.02}, {0.60, 0.94, -0.02},
	},
	StanceReady: {
		{0.50, 0.18, 0}, {0.48, 0.17, 0.01}, {0.52, 0.17, 0.01}, {0.46, 0.18, 0.02}, {0.54, 0.18, 0.02},
		{0.42, 0.30, 0}, {0.58, 0.30, 0},
		{0.35, 0.42, -0.08}, {0.65, 0.42, 0.08},
		{0.28, 0.50, -0.12}, {0.72, 0.50, 0.12},
		{0.43, 0.57, 0}, {0.57, 0.57, 0},
		{0.41, 0.76, 0.03}, {0.59, 0.74, -0.03},
		{0.40, 0.95, 0.02}, {0.60, 0.93, -0.02},
	},
}

// StandardPose returns the coached COCO-17 frame for stance, mirrored in x so
// it faces the same way as the trainee. Unknown stances get StanceReady.
// The returned frame is a fresh copy.
func StandardPose(stance Stance) types.Frame {
	table, ok := stanceTables[stance]
	if !ok {
		table = stanceTables[StanceReady]
	}
	frame := make(types.Frame, len(table))
	for i, p := range table {
		frame[i] = types.Keypoint{X: 1 - p[0], Y: p[1], Z: p[2], Confidence: stanceConfidence}
	}
	return frame
}
