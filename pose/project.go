package pose

import "github.com/AltairaLabs/PoseKit/types"

// Point2 is a viewport position in pixels.
type Point2 struct {
	X, Y float64
}

// Viewport maps normalized coordinates onto a W×H pixel surface.
type Viewport struct {
	Width, Height float64
}

// Project returns (x·W, y·H).
func (v Viewport) Project(k types.Keypoint) Point2 {
	return Point2{X: k.X * v.Width, Y: k.Y * v.Height}
}

// Vec3 is a scene-space position.
type Vec3 struct {
	X, Y, Z float64
}

// Scene maps normalized coordinates into a y-up 3D scene centred on the origin.
type Scene struct {
	// Scale is the half-extent of the scene; zero means 1.
	Scale float64
}

// Project returns ((x-0.5)·2s, -(y-0.5)·2s, z·2s).
func (s Scene) Project(k types.Keypoint) Vec3 {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	return Vec3{
		X: (k.X - 0.5) * 2 * scale,
		Y: -(k.Y - 0.5) * 2 * scale,
		Z: k.Z * 2 * scale,
	}
}
