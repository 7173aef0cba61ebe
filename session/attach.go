package session

import (
	"github.com/AltairaLabs/PoseKit/dispatch"
	"github.com/AltairaLabs/PoseKit/logger"
	"github.com/AltairaLabs/PoseKit/types"
)

// Subscriber registers dispatch handlers.
type Subscriber interface {
	Subscribe(msgType string, h dispatch.Handler) (unsubscribe func())
}

// Attach feeds pose_update and metrics_update envelopes from s into the
// controller. Call Detach to remove the handlers.
func (c *Controller) Attach(s Subscriber) {
	unsubPose := s.Subscribe(types.MessagePoseUpdate, c.handlePose)
	unsubMetrics := s.Subscribe(types.MessageMetricsUpdate, c.handleMetrics)

	c.mu.Lock()
	c.detach = append(c.detach, unsubPose, unsubMetrics)
	c.mu.Unlock()
}

// Detach removes every handler installed by Attach.
func (c *Controller) Detach() {
	c.mu.Lock()
	fns := c.detach
	c.detach = nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Controller) handlePose(env types.Envelope) {
	var p types.PosePayload
	if err := env.DecodeData(&p); err != nil {
		logger.Warn("ignoring pose update", "error", err)
		return
	}
	if len(p.Keypoints) == 0 {
		return
	}
	c.ApplyPose(p.Keypoints)
}

func (c *Controller) handleMetrics(env types.Envelope) {
	var u types.MetricsUpdate
	if err := env.DecodeData(&u); err != nil {
		logger.Warn("ignoring metrics update", "error", err)
		return
	}
	if u.Empty() {
		return
	}
	c.ApplyMetrics(u)
}
