package synth

import (
	"iter"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/AltairaLabs/PoseKit/types"
)

const dateLayout = "2006-01-02"

// Default historical window.
var (
	DefaultHistoryStart = time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)
	DefaultHistoryEnd   = time.Date(2024, time.December, 13, 0, 0, 0, 0, time.UTC)
)

const (
	weekendBonus       = 0.15
	maxTrainChance     = 0.95
	percentJitter      = 3.0
	reactionJitterMS   = 15.0
	minSessionCalories = 100.0
)

// HistoryOptions bounds the generated window. Zero values use the defaults.
type HistoryOptions struct {
	Start time.Time
	End   time.Time
}

func (o HistoryOptions) days() []time.Time {
	start, end := o.Start, o.End
	if start.IsZero() {
		start = DefaultHistoryStart
	}
	if end.IsZero() {
		end = DefaultHistoryEnd
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// TrendPoint aggregates one trained day.
type TrendPoint struct {
	Date            time.Time `json:"date"`
	AvgHitRate      float64   `json:"avg_hit_rate"`
	AvgReactionTime float64   `json:"avg_reaction_time"`
	Sessions        int       `json:"sessions"`
	Accuracy        float64   `json:"accuracy"`
	Calories        float64   `json:"calories"`
}

// Label formats the date as MM-DD.
func (p TrendPoint) Label() string {
	return p.Date.Format("01-02")
}

// TrainsOn reports whether userID trains on day.
func TrainsOn(userID string, tier Tier, day time.Time) bool {
	p := tier.TrainProbability
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		p = math.Min(p+weekendBonus, maxTrainChance)
	}
	return Seeded("train-"+normalizeUser(userID)+"-"+day.Format(dateLayout)) < p
}

// SessionMetrics returns the metrics of one historical session. progress is the
// day's position in the window, from 0 to just under 1.
func SessionMetrics(userID string, tier Tier, day time.Time, progress float64, index int) types.Metrics {
	base := "metrics-" + normalizeUser(userID) + "-" + day.Format(dateLayout) + "-" + strconv.Itoa(index)

	hit := tier.HitRate.Lerp(progress) + SeededRange(base+"-hit", -percentJitter, percentJitter)
	reaction := tier.ReactionTime.Max + (tier.ReactionTime.Min-tier.ReactionTime.Max)*progress +
		SeededRange(base+"-react", -reactionJitterMS, reactionJitterMS)
	accuracy := tier.Accuracy.Lerp(progress) + SeededRange(base+"-acc", -percentJitter, percentJitter)
	fatigue := SeededRange(base+"-fatigue", tier.FatigueLevel.Min, tier.FatigueLevel.Max)
	calories := SeededRange(base+"-cal", tier.Calories.Min, tier.Calories.Max)

	return types.Metrics{
		HitRate:        types.ClampPercent(hit),
		ReactionTime:   types.ClampReactionTime(reaction),
		Accuracy:       types.ClampPercent(accuracy),
		FatigueLevel:   types.ClampPercent(fatigue),
		CaloriesBurned: math.Max(minSessionCalories, calories),
	}
}

// History yields one TrendPoint per trained day in the window, oldest first.
// Untrained days are skipped. The sequence is lazy and may be ranged over
// repeatedly with identical results.
func History(userID string, opts HistoryOptions) iter.Seq[TrendPoint] {
	user := normalizeUser(userID)
	tier := TierFor(user)

	return func(yield func(TrendPoint) bool) {
		days := opts.days()
		total := float64(len(days))
		for i, day := range days {
			if !TrainsOn(user, tier, day) {
				continue
			}
			count := tier.SessionCount(Seeded("sessions-" + user + "-" + day.Format(dateLayout) + "-count"))

			var sum types.Metrics
			for s := 0; s < count; s++ {
				m := SessionMetrics(user, tier, day, float64(i)/total, s)
				sum.HitRate += m.HitRate
				sum.ReactionTime += m.ReactionTime
				sum.Accuracy += m.Accuracy
				sum.CaloriesBurned += m.CaloriesBurned
			}
			n := float64(count)
			point := TrendPoint{
				Date:            day,
				AvgHitRate:      sum.HitRate / n,
				AvgReactionTime: sum.ReactionTime / n,
				Sessions:        count,
				Accuracy:        sum.Accuracy / n,
				Calories:        sum.CaloriesBurned,
			}
			if !yield(point) {
				return
			}
		}
	}
}

// HistorySlice collects History into a slice.
func HistorySlice(userID string, opts HistoryOptions) []TrendPoint {
	return slices.Collect(History(userID, opts))
}

// RecentTrends returns the last n trained days of the default window.
// n <= 0 means 7.
func RecentTrends(userID string, n int) []TrendPoint {
	if n <= 0 {
		n = 7
	}
	all := HistorySlice(userID, HistoryOptions{})
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// Training modes assigned to historical sessions.
var trainingModes = []string{"standard", "intensive", "recovery"}

// SessionRecord is one historical training session.
type SessionRecord struct {
	ID              string        `json:"id"`
	StartTime       time.Time     `json:"start_time"`
	DurationSeconds int           `json:"duration_seconds"`
	Metrics         types.Metrics `json:"metrics"`
	TrainingMode    string        `json:"training_mode"`
}

// Sessions lists the historical sessions of userID in the default window,
// newest first.
func Sessions(userID string) []SessionRecord {
	user := normalizeUser(userID)
	tier := TierFor(user)
	days := HistoryOptions{}.days()
	total := float64(len(days))

	var out []SessionRecord
	for i, day := range days {
		if !TrainsOn(user, tier, day) {
			continue
		}
		seed := "sessions-" + user + "-" + day.Format(dateLayout)
		count := 1
		if Seeded(seed+"-count") >= 0.6 {
			count = 2
		}
		for s := 0; s < count; s++ {
			idx := strconv.Itoa(s)
			hour := 14 + int(math.Floor(Seeded(seed+"-hour-"+idx)*6))
			mode := trainingModes[int(math.Floor(Seeded(seed+"-mode-"+idx)*3))]
			out = append(out, SessionRecord{
				ID:              "session-" + day.Format("20060102") + "-" + strconv.Itoa(hour) + "-" + idx,
				StartTime:       day.Add(time.Duration(hour) * time.Hour),
				DurationSeconds: 1200 + int(math.Floor(Seeded(seed+"-dur-"+idx)*2400)),
				Metrics:         SessionMetrics(user, tier, day, float64(i)/total, s),
				TrainingMode:    mode,
			})
		}
	}
	slices.Reverse(out)
	return out
}

// DashboardStats are the aggregates shown on a demo user's dashboard.
type DashboardStats struct {
	TotalUsers         int     `json:"total_users"`
	ActiveDevices      int     `json:"active_devices"`
	TodaySessions      int     `json:"today_sessions"`
	AvgHitRate         float64 `json:"avg_hit_rate"`
	AvgReactionTime    float64 `json:"avg_reaction_time"`
	TotalTrainingHours float64 `json:"total_training_hours"`
}

const (
	demoTotalUsers    = 1250
	demoActiveDevices = 2
	avgSessionMinutes = 35
)

// Stats summarizes the default window for userID.
func Stats(userID string) DashboardStats {
	user := normalizeUser(userID)

	var days, sessions int
	var hit, reaction float64
	for p := range History(user, HistoryOptions{}) {
		days++
		sessions += p.Sessions
		hit += p.AvgHitRate
		reaction += p.AvgReactionTime
	}

	stats := DashboardStats{
		TotalUsers:         demoTotalUsers,
		ActiveDevices:      demoActiveDevices,
		TodaySessions:      int(math.Floor(Seeded("today-"+user+"-stats")*3)) + 1,
		TotalTrainingHours: float64(sessions*avgSessionMinutes) / 60,
	}
	if days > 0 {
		stats.AvgHitRate = hit / float64(days)
		stats.AvgReactionTime = reaction / float64(days)
	}
	return stats
}
