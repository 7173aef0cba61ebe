package types

// ReactionTimeFloorMS is the lowest physically plausible reaction time.
const ReactionTimeFloorMS = 200.0

// Metrics is the live metrics snapshot shown while a session runs.
type Metrics struct {
	HitRate         float64 `json:"hit_rate"`
	ReactionTime    float64 `json:"reaction_time"`
	Accuracy        float64 `json:"accuracy"`
	FatigueLevel    float64 `json:"fatigue_level"`
	CaloriesBurned  float64 `json:"calories_burned"`
	SessionDuration float64 `json:"session_duration"`
}

// MetricsUpdate is a partial update; nil fields leave the snapshot untouched.
type MetricsUpdate struct {
	HitRate         *float64 `json:"hit_rate,omitempty"`
	ReactionTime    *float64 `json:"reaction_time,omitempty"`
	Accuracy        *float64 `json:"accuracy,omitempty"`
	FatigueLevel    *float64 `json:"fatigue_level,omitempty"`
	CaloriesBurned  *float64 `json:"calories_burned,omitempty"`
	SessionDuration *float64 `json:"session_duration,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u MetricsUpdate) Empty() bool {
	return u.HitRate == nil && u.ReactionTime == nil && u.Accuracy == nil &&
		u.FatigueLevel == nil && u.CaloriesBurned == nil && u.SessionDuration == nil
}

// Merge applies u field by field and clamps every supplied value.
func (m Metrics) Merge(u MetricsUpdate) Metrics {
	if u.HitRate != nil {
		m.HitRate = ClampPercent(*u.HitRate)
	}
	if u.ReactionTime != nil {
		m.ReactionTime = ClampReactionTime(*u.ReactionTime)
	}
	if u.Accuracy != nil {
		m.Accuracy = ClampPercent(*u.Accuracy)
	}
	if u.FatigueLevel != nil {
		m.FatigueLevel = ClampPercent(*u.FatigueLevel)
	}
	if u.CaloriesBurned != nil {
		m.CaloriesBurned = max(*u.CaloriesBurned, 0)
	}
	if u.SessionDuration != nil {
		m.SessionDuration = max(*u.SessionDuration, 0)
	}
	return m
}

// Update converts a full snapshot into an update that sets every field.
func (m Metrics) Update() MetricsUpdate {
	return MetricsUpdate{
		HitRate:         Float(m.HitRate),
		ReactionTime:    Float(m.ReactionTime),
		Accuracy:        Float(m.Accuracy),
		FatigueLevel:    Float(m.FatigueLevel),
		CaloriesBurned:  Float(m.CaloriesBurned),
		SessionDuration: Float(m.SessionDuration),
	}
}

// ClampPercent limits v to [0,100].
func ClampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

// ClampReactionTime limits v to at least ReactionTimeFloorMS.
func ClampReactionTime(v float64) float64 {
	return max(v, ReactionTimeFloorMS)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
