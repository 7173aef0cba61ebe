package synth

import "strings"

// DefaultUser stands in for an empty user identifier.
const DefaultUser = "demo1"

// Range is an inclusive numeric band.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Lerp interpolates from Min to Max by t.
func (r Range) Lerp(t float64) float64 {
	return r.Min + (r.Max-r.Min)*t
}

// Tier is an immutable skill profile.
type Tier struct {
	Name            string `json:"name"`
	Label           string `json:"label"`
	HitRate         Range  `json:"hit_rate"`
	ReactionTime    Range  `json:"reaction_time"`
	Accuracy        Range  `json:"accuracy"`
	SessionsPerWeek Range  `json:"sessions_per_week"`
	FatigueLevel    Range  `json:"fatigue_level"`
	Calories        Range  `json:"calories_per_session"`
	OverallScore    int    `json:"overall_score"`
	RankPercentile  int    `json:"rank_percentile"`

	// ActionAdjust is the seeded shift applied to baseline action scores.
	ActionAdjust Range `json:"action_adjust"`

	// TrainProbability is the weekday chance that a given day has training.
	TrainProbability float64 `json:"train_probability"`

	// sessionThresholds split a seeded draw into a per-day session count:
	// a draw below thresholds[i] yields i+1 sessions.
	sessionThresholds []float64
}

// SessionCount converts a draw in [0,1) into the number of sessions that day.
func (t Tier) SessionCount(r float64) int {
	for i, th := range t.sessionThresholds {
		if r < th {
			return i + 1
		}
	}
	return len(t.sessionThresholds) + 1
}

var (
	// Beginner is the casual-player profile.
	Beginner = Tier{
		Name:              "beginner",
		Label:             "Amateur beginner",
		HitRate:           Range{35, 52},
		ReactionTime:      Range{520, 650},
		Accuracy:          Range{40, 55},
		SessionsPerWeek:   Range{1, 3},
		FatigueLevel:      Range{45, 75},
		Calories:          Range{150, 280},
		OverallScore:      48,
		RankPercentile:    75,
		ActionAdjust:      Range{-15, -2},
		TrainProbability:  0.30,
		sessionThresholds: []float64{0.8},
	}

	// Intermediate is the skilled-amateur profile.
	Intermediate = Tier{
		Name:              "intermediate",
		Label:             "Advanced amateur",
		HitRate:           Range{58, 72},
		ReactionTime:      Range{380, 480},
		Accuracy:          Range{60, 75},
		SessionsPerWeek:   Range{3, 5},
		FatigueLevel:      Range{30, 58},
		Calories:          Range{250, 380},
		OverallScore:      68,
		RankPercentile:    35,
		ActionAdjust:      Range{-8, 3},
		TrainProbability:  0.55,
		sessionThresholds: []float64{0.5},
	}

	// Advanced is the professional profile.
	Advanced = Tier{
		Name:              "advanced",
		Label:             "Professional",
		HitRate:           Range{78, 92},
		ReactionTime:      Range{220, 300},
		Accuracy:          Range{85, 96},
		SessionsPerWeek:   Range{5, 7},
		FatigueLevel:      Range{15, 38},
		Calories:          Range{380, 520},
		OverallScore:      92,
		RankPercentile:    3,
		ActionAdjust:      Range{-3, 5},
		TrainProbability:  0.85,
		sessionThresholds: []float64{0.3, 0.7},
	}
)

// TierFor resolves a user identifier to its tier. Matching is exact and
// case-insensitive; unknown identifiers get Beginner.
func TierFor(userID string) Tier {
	switch strings.ToLower(userID) {
	case "advanced", "demo3":
		return Advanced
	case "intermediate", "demo2":
		return Intermediate
	default:
		return Beginner
	}
}

func normalizeUser(userID string) string {
	if userID == "" {
		return DefaultUser
	}
	return strings.ToLower(userID)
}
