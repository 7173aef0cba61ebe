package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/PoseKit/logger"
	"github.com/AltairaLabs/PoseKit/pose"
	"github.com/AltairaLabs/PoseKit/synth"
	"github.com/AltairaLabs/PoseKit/types"
)

// renderOptions are the inputs of the render command.
type renderOptions struct {
	Output      string
	Frame       int
	Reference   bool
	Action      int
	Standardize bool
	Width       int
	Height      int
}

func newRenderCmd() *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a demo, reference or coached stroke pose skeleton to PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sk, err := renderPose(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d joints, %d bones)\n", opts.Output, len(sk.Joints), len(sk.Bones))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "pose.png", "Output PNG path")
	cmd.Flags().IntVar(&opts.Frame, "frame", 0, "Demo animation frame index")
	cmd.Flags().BoolVar(&opts.Reference, "reference", false, "Render the reference pose instead of a demo frame")
	cmd.Flags().IntVar(&opts.Action, "action", 0, "Render the coached pose of this stroke sequence number (1-20)")
	cmd.Flags().BoolVar(&opts.Standardize, "standardize", false, "Apply the coached corrections before rendering")
	cmd.Flags().IntVar(&opts.Width, "width", 640, "Image width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", 480, "Image height in pixels")
	return cmd
}

func renderPose(opts renderOptions) (pose.Skeleton, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return pose.Skeleton{}, fmt.Errorf("invalid image size %dx%d", opts.Width, opts.Height)
	}

	var frame types.Frame
	switch {
	case opts.Action != 0:
		if opts.Action < 1 || opts.Action > len(synth.Actions) {
			return pose.Skeleton{}, fmt.Errorf("action %d out of range [1,%d]", opts.Action, len(synth.Actions))
		}
		frame = pose.StandardPose(synth.Actions[opts.Action-1].Stance)
	case opts.Reference:
		frame = pose.ReferencePose
	default:
		frames := synth.DemoFrames()
		if opts.Frame < 0 || opts.Frame >= len(frames) {
			return pose.Skeleton{}, fmt.Errorf("frame %d out of range [0,%d)", opts.Frame, len(frames))
		}
		frame = frames[opts.Frame]
	}
	if opts.Standardize {
		frame = pose.Standardize(frame)
	}

	layout, ok := pose.LayoutFor(len(frame))
	if !ok {
		return pose.Skeleton{}, fmt.Errorf("no layout for a %d-point frame", len(frame))
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	sk := pose.DrawOverlay(img, frame, pose.OverlayOptions{Layout: layout})

	f, err := os.Create(opts.Output)
	if err != nil {
		return pose.Skeleton{}, fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return pose.Skeleton{}, fmt.Errorf("failed to encode PNG: %w", err)
	}

	logger.Debug("rendered pose", "output", opts.Output, "joints", len(sk.Joints))
	return sk, nil
}
