package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/patterns"
	"github.com/felixgeelhaar/cyberquest/internal/progress"
)

func cmdSummary(args []string) error {
	c, err := learnerClient(flag.NewFlagSet("summary", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	var resp struct {
		Summary  domain.Summary `json:"summary"`
		Fallback bool           `json:"fallback"`
	}
	if err := c.get(context.Background(), "/v1/summary", nil, &resp); err != nil {
		return err
	}
	printSummary(os.Stdout, resp.Summary, resp.Fallback)
	return nil
}

func printSummary(w io.Writer, s domain.Summary, fallback bool) {
	fmt.Fprintln(w, "Learner Summary")
	fmt.Fprintln(w, "===============")
	fmt.Fprintf(w, "Rank:          %s\n", s.Rank)
	fmt.Fprintf(w, "XP:            %d\n", s.TotalXP)
	fmt.Fprintf(w, "Completed:     %d/%d\n", s.CompletedCount, s.TotalExercises)
	fmt.Fprintf(w, "Average Score: %.1f\n", s.AverageScore)
	fmt.Fprintf(w, "Time Spent:    %dm\n", s.TotalTimeSeconds/60)
	fmt.Fprintf(w, "Streak:        %d days\n", s.Streak)
	if fallback {
		fmt.Fprintln(w, "\n(storage unavailable, showing defaults)")
	}
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	c, err := learnerClient(fs, args)
	if err != nil {
		return err
	}
	var stats progress.Stats
	if err := c.get(context.Background(), "/v1/stats", nil, &stats); err != nil {
		return err
	}
	printStats(os.Stdout, &stats)
	return nil
}

func printStats(w io.Writer, s *progress.Stats) {
	fmt.Fprintln(w, "Progress Statistics")
	fmt.Fprintln(w, "===================")
	fmt.Fprintf(w, "Levels:        %d completed, %d in progress, %d total\n",
		s.CompletedLevels, s.InProgressLevels, s.TotalLevels)
	fmt.Fprintf(w, "Completion:    %s %.0f%%\n", renderProgressBar(s.CompletionPercentage/100, 20), s.CompletionPercentage)
	fmt.Fprintf(w, "XP:            %d\n", s.TotalXP)
	fmt.Fprintf(w, "Average Score: %.1f\n", s.AverageScore)

	if len(s.LevelProgress) == 0 {
		return
	}
	levels := make([]int, 0, len(s.LevelProgress))
	for id := range s.LevelProgress {
		levels = append(levels, id)
	}
	sort.Ints(levels)

	fmt.Fprintln(w, "\nLevels")
	fmt.Fprintln(w, "------")
	for _, id := range levels {
		p := s.LevelProgress[id]
		fmt.Fprintf(w, "Level %-3d %-12s %s %.0f%% (%d attempts, %d XP)\n",
			id, p.Status, renderProgressBar(p.CompletionPercentage/100, 10),
			p.CompletionPercentage, p.Attempts, p.XPEarned)
	}
}

func cmdSkills(args []string) error {
	c, err := learnerClient(flag.NewFlagSet("skills", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	var resp struct {
		Skills map[string]*domain.SkillAssessment `json:"skills"`
	}
	if err := c.get(context.Background(), "/v1/skills", nil, &resp); err != nil {
		return err
	}
	printSkills(os.Stdout, resp.Skills)
	return nil
}

func printSkills(w io.Writer, skills map[string]*domain.SkillAssessment) {
	fmt.Fprintln(w, "Skills")
	fmt.Fprintln(w, "======")
	if len(skills) == 0 {
		fmt.Fprintln(w, "No skills assessed yet. Complete a level to start!")
		return
	}

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := skills[name]
		pct := 0.0
		if a.MaxScore > 0 {
			pct = a.Score / a.MaxScore
		}
		fmt.Fprintf(w, "%-24s %s %-12s (level %d)\n", name, renderProgressBar(pct, 20), a.Tier, a.ExerciseID)
	}
}

func cmdNext(args []string) error {
	c, err := learnerClient(flag.NewFlagSet("next", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	var activity engine.Activity
	if err := c.get(context.Background(), "/v1/next-activity", nil, &activity); err != nil {
		return err
	}
	printActivity(os.Stdout, activity)
	return nil
}

func printActivity(w io.Writer, a engine.Activity) {
	switch a.Type {
	case engine.ActivitySimulation:
		fmt.Fprintf(w, "Next: simulation level %d (%s)\n", a.ExerciseID, a.Difficulty)
	case engine.ActivityError:
		fmt.Fprintf(w, "Next: unavailable (%s)\n", a.Error)
		return
	default:
		fmt.Fprintf(w, "Next: %s\n", a.Type)
	}
	if a.Skill != "" {
		fmt.Fprintf(w, "Skill:  %s\n", a.Skill)
	}
	fmt.Fprintf(w, "Why:    %s\n", a.Reason)
	if a.EstimatedMinutes > 0 {
		fmt.Fprintf(w, "Time:   ~%d min\n", a.EstimatedMinutes)
	}
	if a.XPPotential > 0 {
		fmt.Fprintf(w, "XP:     up to %d\n", a.XPPotential)
	}
}

func cmdPatterns(args []string) error {
	fs := flag.NewFlagSet("patterns", flag.ContinueOnError)
	days := fs.Int("days", 30, "trailing window in days")
	c, err := learnerClient(fs, args)
	if err != nil {
		return err
	}
	var a patterns.Analysis
	q := url.Values{"days": {strconv.Itoa(*days)}}
	if err := c.get(context.Background(), "/v1/patterns", q, &a); err != nil {
		return err
	}
	printPatterns(os.Stdout, &a)
	return nil
}

func printPatterns(w io.Writer, a *patterns.Analysis) {
	fmt.Fprintln(w, "Learning Patterns")
	fmt.Fprintln(w, "=================")
	if a.Status != patterns.StatusSuccess {
		fmt.Fprintln(w, a.Message)
		return
	}
	fmt.Fprintf(w, "Sessions:        %d\n", a.TotalSessions)
	fmt.Fprintf(w, "Daily Activity:  %.1f actions\n", a.AvgDailyActivity)
	if a.MostActiveDay != nil {
		fmt.Fprintf(w, "Most Active Day: %s (%d)\n", a.MostActiveDay.Date, a.MostActiveDay.Count)
	}
	fmt.Fprintf(w, "Preferred Time:  %s\n", a.PreferredTime)
	fmt.Fprintf(w, "Engagement:      %s %.0f%%\n", renderProgressBar(a.EngagementScore/100, 20), a.EngagementScore)

	if len(a.Recommendations) > 0 {
		fmt.Fprintln(w, "\nSuggestions")
		fmt.Fprintln(w, "-----------")
		for _, r := range a.Recommendations {
			fmt.Fprintf(w, "- %s\n", r)
		}
	}
}

func cmdRecommendations(args []string) error {
	fs := flag.NewFlagSet("recommendations", flag.ContinueOnError)
	all := fs.Bool("all", false, "include recommendations already acted on or expired")
	c, err := learnerClient(fs, args)
	if err != nil {
		return err
	}
	var resp struct {
		Recommendations []*domain.Recommendation `json:"recommendations"`
	}
	q := url.Values{"active_only": {strconv.FormatBool(!*all)}}
	if err := c.get(context.Background(), "/v1/recommendations", q, &resp); err != nil {
		return err
	}
	printRecommendations(os.Stdout, resp.Recommendations)
	return nil
}

func printRecommendations(w io.Writer, recs []*domain.Recommendation) {
	fmt.Fprintln(w, "Recommendations")
	fmt.Fprintln(w, "===============")
	if len(recs) == 0 {
		fmt.Fprintln(w, "Nothing to recommend right now.")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s  [%s] %s (%.0f%% confidence)\n", r.ID, r.Status, r.Payload.Title, r.Confidence*100)
		fmt.Fprintf(w, "    %s\n", r.Payload.Description)
	}
}

func cmdAchievements(args []string) error {
	c, err := learnerClient(flag.NewFlagSet("achievements", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	var resp struct {
		Achievements []*domain.AwardedAchievement `json:"achievements"`
	}
	if err := c.get(context.Background(), "/v1/achievements", nil, &resp); err != nil {
		return err
	}
	printAchievements(os.Stdout, resp.Achievements)
	return nil
}

func printAchievements(w io.Writer, awarded []*domain.AwardedAchievement) {
	fmt.Fprintln(w, "Achievements")
	fmt.Fprintln(w, "============")
	if len(awarded) == 0 {
		fmt.Fprintln(w, "None yet.")
		return
	}
	for _, a := range awarded {
		name := a.AchievementID
		bonus := 0
		if def, ok := domain.LookupAchievement(a.AchievementID); ok {
			name, bonus = def.Name, def.XPBonus
		}
		fmt.Fprintf(w, "%s  %-20s +%d XP\n", a.AwardedAt.Format("2006-01-02"), name, bonus)
	}
}
