package pose

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/AltairaLabs/PoseKit/types"
)

// OverlayOptions control DrawOverlay. Zero values use defaults.
type OverlayOptions struct {
	Layout      Layout
	JointRadius float64
	BoneWidth   float64
}

const (
	defaultJointRadius = 4
	defaultBoneWidth   = 3
	circleSegments     = 16
)

// DrawOverlay rasterises frame's skeleton over dst and returns the skeleton
// that was drawn. A zero Layout is resolved from the frame length.
func DrawOverlay(dst draw.Image, frame types.Frame, opts OverlayOptions) Skeleton {
	if opts.Layout.Size == 0 {
		opts.Layout, _ = LayoutFor(len(frame))
	}
	if opts.JointRadius == 0 {
		opts.JointRadius = defaultJointRadius
	}
	if opts.BoneWidth == 0 {
		opts.BoneWidth = defaultBoneWidth
	}

	sk := Build(opts.Layout, frame)
	if sk.Empty() {
		return sk
	}

	b := dst.Bounds()
	vp := Viewport{Width: float64(b.Dx()), Height: float64(b.Dy())}
	z := vector.NewRasterizer(b.Dx(), b.Dy())

	for _, bone := range sk.Bones {
		z.Reset(b.Dx(), b.Dy())
		line(z, vp.Project(bone.From), vp.Project(bone.To), opts.BoneWidth)
		z.Draw(dst, b, image.NewUniform(bone.Region.Color()), image.Point{})
	}
	for _, j := range sk.Joints {
		z.Reset(b.Dx(), b.Dy())
		circle(z, vp.Project(j.Keypoint), opts.JointRadius)
		z.Draw(dst, b, image.NewUniform(j.Region.Color()), image.Point{})
	}
	return sk
}

// line adds a w-wide quad from a to b.
func line(z *vector.Rasterizer, a, b Point2, w float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*w/2, dx/length*w/2
	z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	z.ClosePath()
}

func circle(z *vector.Rasterizer, c Point2, r float64) {
	for i := 0; i <= circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		x, y := float32(c.X+r*math.Cos(theta)), float32(c.Y+r*math.Sin(theta))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}
