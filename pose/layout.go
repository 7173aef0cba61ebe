// Package pose turns confidence-scored keypoint frames into a drawable
// skeleton and projects it into 2D viewports or a 3D scene.
package pose

import (
	"image/color"
	"strings"
)

// Region groups keypoints for colouring.
type Region int

// Body regions.
const (
	RegionFace Region = iota
	RegionUpper
	RegionLower
)

// Region colours.
var (
	FaceColor  = color.RGBA{R: 0xff, G: 0x6b, B: 0x6b, A: 0xff}
	UpperColor = color.RGBA{R: 0x4e, G: 0xcd, B: 0xc4, A: 0xff}
	LowerColor = color.RGBA{R: 0x45, G: 0xb7, B: 0xd1, A: 0xff}
)

// Color returns the region's display colour.
func (r Region) Color() color.RGBA {
	switch r {
	case RegionFace:
		return FaceColor
	case RegionUpper:
		return UpperColor
	default:
		return LowerColor
	}
}

func (r Region) String() string {
	switch r {
	case RegionFace:
		return "face"
	case RegionUpper:
		return "upper"
	default:
		return "lower"
	}
}

// Edge connects two keypoint indices.
type Edge [2]int

// Layout fixes the length, edge table and colour regions of a frame.
// Edge tables and regions belong to their layout and are never mixed.
type Layout struct {
	Name  string
	Size  int
	Edges []Edge

	// lastFace and lastUpper are the highest indices of the face and upper
	// regions; everything after lastUpper is lower body.
	lastFace  int
	lastUpper int
}

// Region returns the colour region of keypoint i.
func (l Layout) Region(i int) Region {
	switch {
	case i <= l.lastFace:
		return RegionFace
	case i <= l.lastUpper:
		return RegionUpper
	default:
		return RegionLower
	}
}

// NewLayout defines a custom layout. Indices up to lastFace are face, up to
// lastUpper upper body, and the rest lower body.
func NewLayout(name string, size int, edges []Edge, lastFace, lastUpper int) Layout {
	return Layout{Name: name, Size: size, Edges: edges, lastFace: lastFace, lastUpper: lastUpper}
}

// COCO17 is the 17-point detector layout.
var COCO17 = Layout{
	Name: "coco17",
	Size: 17,
	Edges: []Edge{
		{0, 1}, {0, 2}, {1, 3}, {2, 4},
		{5, 6}, {5, 11}, {6, 12}, {11, 12},
		{5, 7}, {7, 9},
		{6, 8}, {8, 10},
		{11, 13}, {13, 15},
		{12, 14}, {14, 16},
	},
	lastFace:  4,
	lastUpper: 10,
}

// BlazePose33 is the 33-point full-body landmark layout.
var BlazePose33 = Layout{
	Name: "blazepose33",
	Size: 33,
	Edges: []Edge{
		{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8}, {9, 10},
		{11, 12}, {11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21}, {17, 19},
		{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20},
		{11, 23}, {12, 24}, {23, 24},
		{23, 25}, {24, 26}, {25, 27}, {26, 28}, {27, 29}, {28, 30},
		{29, 31}, {30, 32}, {27, 31}, {28, 32},
	},
	lastFace:  10,
	lastUpper: 22,
}

// LayoutByName resolves "coco17" or "blazepose33".
func LayoutByName(name string) (Layout, bool) {
	switch strings.ToLower(name) {
	case COCO17.Name, "coco", "yolo":
		return COCO17, true
	case BlazePose33.Name, "blazepose", "mediapipe":
		return BlazePose33, true
	default:
		return Layout{}, false
	}
}

// LayoutFor returns the built-in layout whose size matches a frame of n
// keypoints.
func LayoutFor(n int) (Layout, bool) {
	switch n {
	case COCO17.Size:
		return COCO17, true
	case BlazePose33.Size:
		return BlazePose33, true
	default:
		return Layout{}, false
	}
}
