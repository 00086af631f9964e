// Package patterns derives engagement metrics from the action log.
package patterns

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// DefaultWindowDays is used when no positive window is requested.
const DefaultWindowDays = 30

// Analysis statuses
const (
	StatusSuccess          = "success"
	StatusInsufficientData = "insufficient_data"
	StatusError            = "error"
)

// Time-of-day buckets
const (
	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
	TimeNight     = "night"
)

// Pattern advice texts
const (
	AdviceEngageMore      = "Try to engage with learning materials more frequently for better retention."
	AdviceShorterSessions = "Consider shorter, more focused learning sessions."
	AdviceFewerHints      = "Try solving challenges without hints first to build confidence."
	AdviceFundamentals    = "Consider reviewing fundamental concepts before tackling new challenges."
)

// Store reads the action log.
type Store interface {
	ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error)
}

// DayCount is the activity count of one calendar date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Analysis is the output of Analyze. Only Status (and Message on error) is
// set unless Status is success.
type Analysis struct {
	Status           string         `json:"status"`
	Message          string         `json:"message,omitempty"`
	AvgDailyActivity float64        `json:"avg_daily_activity,omitempty"`
	TotalSessions    int            `json:"total_sessions,omitempty"`
	MostActiveDay    *DayCount      `json:"most_active_day,omitempty"`
	PreferredTime    string         `json:"preferred_time,omitempty"`
	EngagementScore  float64        `json:"engagement_score,omitempty"`
	ActionBreakdown  map[string]int `json:"action_breakdown,omitempty"`
	Recommendations  []string       `json:"recommendations,omitempty"`
}

// Analyzer computes learning patterns.
type Analyzer struct {
	store Store
	now   func() time.Time
}

// NewAnalyzer creates an analyzer. A nil clock uses time.Now.
func NewAnalyzer(store Store, clock func() time.Time) *Analyzer {
	if clock == nil {
		clock = time.Now
	}
	return &Analyzer{store: store, now: clock}
}

// Analyze inspects the trailing windowDays of activity.
func (a *Analyzer) Analyze(ctx context.Context, learnerID uuid.UUID, windowDays int) *Analysis {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	now := a.now()

	entries, err := a.store.ListActionLog(ctx, learnerID, now.AddDate(0, 0, -windowDays))
	if err != nil {
		slog.Warn("pattern analysis failed", "learner_id", learnerID, "error", err)
		return &Analysis{Status: StatusError, Message: err.Error()}
	}
	return Analyze(entries, now.Location())
}

// Analyze computes patterns over entries, bucketing days and hours in loc.
func Analyze(entries []*domain.ActionLogEntry, loc *time.Location) *Analysis {
	if len(entries) == 0 {
		return &Analysis{Status: StatusInsufficientData}
	}

	sorted := append([]*domain.ActionLogEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	daily := make(map[string]int)
	var dayOrder []string
	var hours [24]int
	actions := make(map[string]int)
	sessions := make(map[string]struct{})

	for _, e := range sorted {
		ts := e.Timestamp.In(loc)
		day := ts.Format(time.DateOnly)
		if _, ok := daily[day]; !ok {
			dayOrder = append(dayOrder, day)
		}
		daily[day]++
		hours[ts.Hour()]++
		actions[e.ActionType]++
		sessions[e.SessionID] = struct{}{}
	}

	avg := float64(len(sorted)) / float64(len(daily))
	engagement := math.Min(100, avg/10*100)

	busiest := DayCount{Date: dayOrder[0], Count: daily[dayOrder[0]]}
	for _, d := range dayOrder[1:] {
		if daily[d] > busiest.Count {
			busiest = DayCount{Date: d, Count: daily[d]}
		}
	}

	return &Analysis{
		Status:           StatusSuccess,
		AvgDailyActivity: round1(avg),
		TotalSessions:    len(sessions),
		MostActiveDay:    &busiest,
		PreferredTime:    TimeOfDay(peakHour(hours)),
		EngagementScore:  round1(engagement),
		ActionBreakdown:  actions,
		Recommendations:  Advise(avg, engagement, actions),
	}
}

// TimeOfDay buckets an hour of the day.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return TimeMorning
	case hour >= 12 && hour < 18:
		return TimeAfternoon
	case hour >= 18 && hour < 22:
		return TimeEvening
	default:
		return TimeNight
	}
}

// Advise applies the pattern rule table.
func Advise(avgDaily, engagement float64, actions map[string]int) []string {
	var out []string
	if avgDaily < 2 {
		out = append(out, AdviceEngageMore)
	}
	if engagement < 50 {
		out = append(out, AdviceShorterSessions)
	}
	completions := actions[domain.ActionComplete]
	if actions[domain.ActionHintUsed] > completions {
		out = append(out, AdviceFewerHints)
	}
	if actions[domain.ActionMistake] > completions*2 {
		out = append(out, AdviceFundamentals)
	}
	return out
}

// peakHour returns the busiest hour, preferring the earliest on ties.
func peakHour(hours [24]int) int {
	peak := 0
	for h := 1; h < len(hours); h++ {
		if hours[h] > hours[peak] {
			peak = h
		}
	}
	return peak
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
