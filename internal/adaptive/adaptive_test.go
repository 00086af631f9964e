package adaptive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

type stubSummaries struct {
	result domain.Advisory[domain.Summary]
}

func (s stubSummaries) Summarize(context.Context, uuid.UUID) domain.Advisory[domain.Summary] {
	return s.result
}

type stubPrefs struct {
	prefs *domain.Preferences
	err   error
}

func (s stubPrefs) GetPreferences(context.Context, uuid.UUID) (*domain.Preferences, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.prefs == nil {
		return nil, domain.ErrPreferencesNotFound
	}
	return s.prefs, nil
}

type stubActions struct {
	entries []*domain.ActionLogEntry
	err     error
}

func (s stubActions) ListActionLog(_ context.Context, _ uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.ActionLogEntry
	for _, e := range s.entries {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func prefsWith(fn func(p *domain.Preferences)) *domain.Preferences {
	p := domain.DefaultPreferences(uuid.New(), time.Now())
	fn(p)
	return p
}

func TestComputeXP(t *testing.T) {
	tests := []struct {
		name    string
		base    int
		diff    domain.Difficulty
		score   float64
		time    bool
		noHints bool
		want    int
	}{
		{"hard perfect with bonuses", 100, domain.DifficultyHard, 100, true, true, 297},
		{"normal zero score", 100, domain.DifficultyNormal, 0, false, false, 50},
		{"easy half", 200, domain.DifficultyEasy, 50, false, false, 160},
		{"expert perfect", 500, domain.DifficultyExpert, 100, false, false, 1500},
		{"unknown difficulty counts as normal", 100, domain.Difficulty("nightmare"), 100, false, false, 150},
		{"score above range returns base", 100, domain.DifficultyHard, 120, true, true, 100},
		{"negative score returns base", 100, domain.DifficultyHard, -1, false, false, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeXP(tt.base, tt.diff, tt.score, tt.time, tt.noHints)
			if got != tt.want {
				t.Errorf("ComputeXP() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestComputeXP_MonotonicInScore(t *testing.T) {
	for _, d := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyNormal, domain.DifficultyHard, domain.DifficultyExpert} {
		for _, bonus := range []bool{false, true} {
			prev := -1
			for s := 0; s <= 100; s++ {
				got := ComputeXP(150, d, float64(s), bonus, bonus)
				if got < prev {
					t.Fatalf("ComputeXP(%v, %d) = %d < previous %d", d, s, got, prev)
				}
				prev = got
			}
		}
	}
}

func TestDifficultyAdapter_Recommend(t *testing.T) {
	hard := func(p *domain.Preferences) { p.DifficultyPreference = domain.DifficultyHard }

	tests := []struct {
		name    string
		summary domain.Advisory[domain.Summary]
		prefs   stubPrefs
		want    domain.Difficulty
		fbk     bool
	}{
		{
			name:    "new learner without preferences",
			summary: domain.Computed(domain.EmptySummary()),
			want:    domain.DifficultyNormal,
		},
		{
			name:    "new learner with explicit preference",
			summary: domain.Computed(domain.EmptySummary()),
			prefs:   stubPrefs{prefs: prefsWith(func(p *domain.Preferences) { p.DifficultyPreference = domain.DifficultyEasy })},
			want:    domain.DifficultyEasy,
		},
		{
			name:    "strong learner is hard",
			summary: domain.Computed(domain.Summary{TotalExercises: 2, CompletedCount: 2, AverageScore: 90}),
			want:    domain.DifficultyHard,
		},
		{
			name:    "middling learner is normal",
			summary: domain.Computed(domain.Summary{TotalExercises: 2, CompletedCount: 1, AverageScore: 90}),
			want:    domain.DifficultyNormal,
		},
		{
			name:    "weak learner is easy",
			summary: domain.Computed(domain.Summary{TotalExercises: 4, CompletedCount: 1, AverageScore: 60}),
			want:    domain.DifficultyEasy,
		},
		{
			name:    "explicit preference overrides computed",
			summary: domain.Computed(domain.Summary{TotalExercises: 4, CompletedCount: 1, AverageScore: 40}),
			prefs:   stubPrefs{prefs: prefsWith(hard)},
			want:    domain.DifficultyHard,
		},
		{
			name:    "summary failure falls back to normal",
			summary: domain.FallbackTo(domain.EmptySummary(), errors.New("db down")),
			want:    domain.DifficultyNormal,
			fbk:     true,
		},
		{
			name:    "preference read failure falls back to normal",
			summary: domain.Computed(domain.Summary{TotalExercises: 2, CompletedCount: 2, AverageScore: 90}),
			prefs:   stubPrefs{err: errors.New("timeout")},
			want:    domain.DifficultyNormal,
			fbk:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewDifficultyAdapter(stubSummaries{tt.summary}, tt.prefs)
			got := a.Recommend(context.Background(), uuid.New(), 1, domain.ExerciseTypeSimulation)
			if got.Value != tt.want {
				t.Errorf("Recommend() = %v; want %v", got.Value, tt.want)
			}
			if got.Fallback != tt.fbk {
				t.Errorf("Fallback = %v; want %v", got.Fallback, tt.fbk)
			}
		})
	}
}

func TestScore(t *testing.T) {
	s := domain.Summary{TotalExercises: 1, CompletedCount: 1, AverageScore: 90}
	if got := Score(s); got != 94 {
		t.Errorf("Score() = %v; want 94", got)
	}
}

func TestHintPolicy_ShouldShow(t *testing.T) {
	withFreq := func(f domain.HintFrequency) stubPrefs {
		return stubPrefs{prefs: prefsWith(func(p *domain.Preferences) { p.HintFrequency = f })}
	}

	tests := []struct {
		name     string
		prefs    stubPrefs
		struggle float64
		want     bool
		fbk      bool
	}{
		{"normal 59", withFreq(domain.HintNormal), 59, false, false},
		{"normal 60", withFreq(domain.HintNormal), 60, true, false},
		{"minimal 179", withFreq(domain.HintMinimal), 179, false, false},
		{"minimal 180", withFreq(domain.HintMinimal), 180, true, false},
		{"frequent 30", withFreq(domain.HintFrequent), 30, true, false},
		{"no preferences 60", stubPrefs{}, 60, true, false},
		{"read failure uses 60", stubPrefs{err: errors.New("down")}, 59, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHintPolicy(tt.prefs).ShouldShow(context.Background(), uuid.New(), tt.struggle)
			if got.Value != tt.want || got.Fallback != tt.fbk {
				t.Errorf("ShouldShow(%v) = %v (fallback %v); want %v (fallback %v)",
					tt.struggle, got.Value, got.Fallback, tt.want, tt.fbk)
			}
		})
	}
}

func TestTutorialAdvisor_Config(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tutorialDone := func(daysAgo int) *domain.ActionLogEntry {
		return &domain.ActionLogEntry{ActionType: domain.ActionTutorialComplete, Timestamp: now.AddDate(0, 0, -daysAgo)}
	}
	skippable := stubPrefs{prefs: prefsWith(func(p *domain.Preferences) {
		p.TutorialSkipAllowed = true
		p.PreferredPace = domain.PaceFast
		p.LearningStyle = domain.StyleVisual
	})}

	t.Run("skip after two recent tutorials", func(t *testing.T) {
		adv := NewTutorialAdvisor(skippable, stubActions{entries: []*domain.ActionLogEntry{tutorialDone(1), tutorialDone(3)}}, clock)
		got := adv.Config(context.Background(), uuid.New(), "intro")
		if !got.Value.SkipAllowed {
			t.Error("SkipAllowed = false; want true")
		}
		if got.Value.Pace != domain.PaceFast || got.Value.Style != domain.StyleVisual {
			t.Errorf("pace/style = %v/%v; want fast/visual", got.Value.Pace, got.Value.Style)
		}
	})

	t.Run("old tutorials do not count", func(t *testing.T) {
		adv := NewTutorialAdvisor(skippable, stubActions{entries: []*domain.ActionLogEntry{tutorialDone(1), tutorialDone(9)}}, clock)
		if got := adv.Config(context.Background(), uuid.New(), "intro"); got.Value.SkipAllowed {
			t.Error("SkipAllowed = true; want false")
		}
	})

	t.Run("skip disallowed by preference", func(t *testing.T) {
		prefs := stubPrefs{prefs: prefsWith(func(p *domain.Preferences) {})}
		adv := NewTutorialAdvisor(prefs, stubActions{entries: []*domain.ActionLogEntry{tutorialDone(1), tutorialDone(2)}}, clock)
		if got := adv.Config(context.Background(), uuid.New(), "intro"); got.Value.SkipAllowed {
			t.Error("SkipAllowed = true; want false")
		}
	})

	t.Run("pace derived from long sessions", func(t *testing.T) {
		entries := []*domain.ActionLogEntry{
			{SessionID: "a", Timestamp: now.Add(-3 * time.Hour)},
			{SessionID: "a", Timestamp: now.Add(-2 * time.Hour)},
		}
		adv := NewTutorialAdvisor(stubPrefs{}, stubActions{entries: entries}, clock)
		got := adv.Config(context.Background(), uuid.New(), "intro")
		if got.Value.Pace != domain.PaceSlow {
			t.Errorf("Pace = %v; want slow", got.Value.Pace)
		}
		if got.Value.Style != domain.StyleBalanced {
			t.Errorf("Style = %v; want balanced", got.Value.Style)
		}
	})

	t.Run("pace defaults without history", func(t *testing.T) {
		adv := NewTutorialAdvisor(stubPrefs{}, stubActions{}, clock)
		if got := adv.Config(context.Background(), uuid.New(), "intro"); got.Value.Pace != domain.PaceNormal {
			t.Errorf("Pace = %v; want normal", got.Value.Pace)
		}
	})

	t.Run("read failure returns defaults", func(t *testing.T) {
		adv := NewTutorialAdvisor(stubPrefs{}, stubActions{err: errors.New("down")}, clock)
		got := adv.Config(context.Background(), uuid.New(), "intro")
		if !got.Fallback || got.Value.SkipAllowed || got.Value.Pace != domain.PaceNormal {
			t.Errorf("Config() = %+v; want fallback defaults", got)
		}
	})
}

func TestAverageSessionSeconds(t *testing.T) {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	entries := []*domain.ActionLogEntry{
		{SessionID: "a", Timestamp: base},
		{SessionID: "a", Timestamp: base.Add(20 * time.Minute)},
		{SessionID: "b", Timestamp: base},
	}
	if got := AverageSessionSeconds(entries); got != 600 {
		t.Errorf("AverageSessionSeconds() = %v; want 600", got)
	}
}
