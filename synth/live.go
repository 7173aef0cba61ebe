package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/AltairaLabs/PoseKit/types"
)

const (
	maxLiveFatigue      = 80.0
	caloriesPerSecond   = 0.15
	fatigueSecondsPerPt = 10.0
)

// LiveSampler draws unseeded metric samples within a tier's bounds for a
// running demo session. It is not safe for concurrent use.
type LiveSampler struct {
	tier  Tier
	float func() float64
}

// NewLiveSampler creates a sampler for tier.
func NewLiveSampler(tier Tier) *LiveSampler {
	return &LiveSampler{tier: tier, float: rand.Float64}
}

// Tier returns the sampler's tier.
func (s *LiveSampler) Tier() Tier {
	return s.tier
}

// Initial returns the sample shown when a demo session starts.
func (s *LiveSampler) Initial() types.MetricsUpdate {
	t := s.tier
	return types.MetricsUpdate{
		HitRate:        types.Float(t.HitRate.Min + s.float()*10),
		ReactionTime:   types.Float(t.ReactionTime.Max - s.float()*20),
		Accuracy:       types.Float(t.Accuracy.Min + s.float()*10),
		FatigueLevel:   types.Float(t.FatigueLevel.Min),
		CaloriesBurned: types.Float(0),
	}
}

// Sample returns the update for a session that has run for elapsed.
func (s *LiveSampler) Sample(elapsed time.Duration) types.MetricsUpdate {
	t := s.tier
	secs := math.Floor(elapsed.Seconds())
	return types.MetricsUpdate{
		HitRate:        types.Float(t.HitRate.Lerp(s.float())),
		ReactionTime:   types.Float(t.ReactionTime.Lerp(s.float())),
		Accuracy:       types.Float(t.Accuracy.Lerp(s.float())),
		FatigueLevel:   types.Float(math.Min(maxLiveFatigue, t.FatigueLevel.Min+secs/fatigueSecondsPerPt)),
		CaloriesBurned: types.Float(secs * caloriesPerSecond),
	}
}
