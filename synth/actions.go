package synth

import (
	"math"

	"github.com/AltairaLabs/PoseKit/pose"
	"github.com/AltairaLabs/PoseKit/types"
)

// Score bounds of an adjusted action match.
const (
	MinActionScore = 60.0
	MaxActionScore = 98.0
)

// Action is a badminton stroke with its baseline match score.
type Action struct {
	Sequence  int
	Name      string
	Stance    pose.Stance
	BaseScore float64
}

// Actions is the catalogue of scored strokes, in display order.
var Actions = []Action{
	{1, "clear", pose.StanceOverhead, 83.47},
	{2, "lift", pose.StanceReady, 79.87},
	{3, "smash defence", pose.StanceDefence, 92.94},
	{4, "attacking clear", pose.StanceReady, 87.87},
	{5, "net drop", pose.StanceReady, 86.66},
	{6, "drive", pose.StanceDrive, 91.24},
	{7, "forehand net kill", pose.StanceReady, 88.34},
	{8, "forehand cross-net", pose.StanceReady, 87.64},
	{9, "forehand push", pose.StanceReady, 88.81},
	{10, "forehand drop", pose.StanceReady, 85.91},
	{11, "backhand clear", pose.StanceOverhead, 84.23},
	{12, "forehand smash", pose.StanceOverhead, 89.76},
	{13, "slice drop", pose.StanceReady, 85.42},
	{14, "net push", pose.StanceDrive, 87.28},
	{15, "backhand smash defence", pose.StanceDefence, 90.65},
	{16, "jump smash", pose.StanceOverhead, 82.18},
	{17, "net spin", pose.StanceReady, 88.95},
	{18, "cross-court hook", pose.StanceReady, 86.35},
	{19, "backhand lift", pose.StanceReady, 84.76},
	{20, "net kill", pose.StanceReady, 89.42},
}

// ActionMatch scores how closely a user's stroke matches the coached form.
// Distance is (100-Score)/500 and Similarity is 1-Distance.
type ActionMatch struct {
	Sequence     int         `json:"sequence"`
	Name         string      `json:"action_name"`
	Stance       pose.Stance `json:"stance"`
	Score        float64     `json:"score"`
	Distance     float64     `json:"distance"`
	Similarity   float64     `json:"similarity"`
	StandardPose types.Frame `json:"standard_pose"`
}

// ActionMatches returns one seeded match per entry of Actions. The baseline
// score is shifted by a draw from the user's tier ActionAdjust band and
// clamped to [MinActionScore, MaxActionScore].
func ActionMatches(userID string) []ActionMatch {
	user := normalizeUser(userID)
	adjust := TierFor(user).ActionAdjust

	out := make([]ActionMatch, 0, len(Actions))
	for _, a := range Actions {
		shift := SeededRange("action-"+user+"-"+a.Name, adjust.Min, adjust.Max)
		score := math.Max(MinActionScore, math.Min(MaxActionScore, a.BaseScore+shift))
		distance := (100 - score) / 500
		out = append(out, ActionMatch{
			Sequence:     a.Sequence,
			Name:         a.Name,
			Stance:       a.Stance,
			Score:        score,
			Distance:     distance,
			Similarity:   1 - distance,
			StandardPose: pose.StandardPose(a.Stance),
		})
	}
	return out
}
