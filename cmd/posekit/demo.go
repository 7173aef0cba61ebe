package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/PoseKit/logger"
	"github.com/AltairaLabs/PoseKit/pose"
	"github.com/AltairaLabs/PoseKit/session"
	"github.com/AltairaLabs/PoseKit/synth"
	"github.com/AltairaLabs/PoseKit/types"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a synthetic demo session and print live snapshots",
		Long: `Run a demo session driven by the synthesizer. Metrics are sampled from the
user's skill tier and the pose loops through the built-in animation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := cmd.Flags().GetString("user")
			if err != nil {
				return fmt.Errorf("failed to get user flag: %w", err)
			}
			duration, err := cmd.Flags().GetDuration("duration")
			if err != nil {
				return fmt.Errorf("failed to get duration flag: %w", err)
			}
			interval, err := cmd.Flags().GetDuration("interval")
			if err != nil {
				return fmt.Errorf("failed to get interval flag: %w", err)
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			format, err = resolveFormat(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, cmd.OutOrStdout(), user, format, duration, interval)
		},
	}
	cmd.Flags().StringP("user", "u", synth.DefaultUser, "Demo user or tier (demo1, demo2, demo3, beginner, intermediate, advanced)")
	cmd.Flags().Duration("duration", 10*time.Second, "How long to run; 0 runs until interrupted")
	cmd.Flags().Duration("interval", time.Second, "Snapshot print interval")
	cmd.Flags().String("format", formatAuto, "Output format: auto, json or pretty")
	return cmd
}

// demoLine is one printed demo snapshot.
type demoLine struct {
	session.Snapshot
	Tier   string `json:"tier"`
	Joints int    `json:"joints"`
	Peak   bool   `json:"peak"`
}

func runDemo(ctx context.Context, out io.Writer, user, format string, duration, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ctrl := session.NewController(nil, nil, session.Options{})
	if !ctrl.StartDemo(user) {
		return fmt.Errorf("demo session could not start")
	}
	defer ctrl.StopDemo()

	tier := synth.TierFor(user)
	logger.InfoContext(logger.WithUserID(ctx, user), "demo session started", "tier", tier.Name)

	enc := json.NewEncoder(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev demoLine
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := ctrl.Snapshot()
			line := demoLine{
				Snapshot: snap,
				Tier:     tier.Name,
				Joints:   reliableJoints(snap.Pose),
				Peak:     pose.IsPeak(snap.Pose, prev.Pose),
			}
			prev = line
			if err := writeDemoLine(out, enc, format, line); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
		}
	}
}

// reliableJoints counts the drawable joints of frame in the layout matching
// its length.
func reliableJoints(frame types.Frame) int {
	layout, ok := pose.LayoutFor(len(frame))
	if !ok {
		return 0
	}
	return len(pose.Build(layout, frame).Joints)
}

func writeDemoLine(out io.Writer, enc *json.Encoder, format string, line demoLine) error {
	if format == formatPretty {
		_, err := fmt.Fprintln(out, renderDemoLine(line))
		return err
	}
	line.Pose = nil
	return enc.Encode(line)
}
