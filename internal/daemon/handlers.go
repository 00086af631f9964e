package daemon

import (
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/google/uuid"
)

// Progress handlers

func (s *Server) handleDifficulty(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	exerciseID, err := pathInt(r, "exercise_id")
	if err != nil {
		s.engineError(w, r, "invalid exercise", err)
		return
	}
	exerciseType := exerciseTypeParam(r)

	d := s.engine.GetDifficulty(r.Context(), learner, exerciseID, exerciseType)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"exercise_id":   exerciseID,
		"exercise_type": exerciseType,
		"difficulty":    d.Value,
		"fallback":      d.Fallback,
	})
}

func (s *Server) handleSubmitProgress(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	var sub engine.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		s.engineError(w, r, "invalid submission", err)
		return
	}

	result, err := s.engine.SubmitProgress(r.Context(), learner, sub)
	if err != nil {
		s.engineError(w, r, "failed to submit progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleStartExercise(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	exerciseID, err := pathInt(r, "exercise_id")
	if err != nil {
		s.engineError(w, r, "invalid exercise", err)
		return
	}

	record, err := s.engine.StartExercise(r.Context(), learner, exerciseID, exerciseTypeParam(r))
	if err != nil {
		s.engineError(w, r, "failed to start exercise", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	exerciseID, err := pathInt(r, "exercise_id")
	if err != nil {
		s.engineError(w, r, "invalid exercise", err)
		return
	}

	if err := s.engine.ResetProgress(r.Context(), learner, exerciseID, exerciseTypeParam(r)); err != nil {
		s.engineError(w, r, "failed to reset progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":      "reset",
		"exercise_id": exerciseID,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	summary := s.engine.Summary(r.Context(), learner)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"summary":  summary.Value,
		"fallback": summary.Fallback,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	stats, err := s.engine.Stats(r.Context(), learner)
	if err != nil {
		s.engineError(w, r, "failed to load stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// Action & achievement handlers

func (s *Server) handleLogAction(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	var in engine.ActionInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.engineError(w, r, "invalid action", err)
		return
	}
	in.Origin = &domain.Origin{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	result, err := s.engine.LogAction(r.Context(), learner, in)
	if err != nil {
		s.engineError(w, r, "failed to log action", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, result)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	awarded, err := s.engine.Achievements(r.Context(), learner)
	if err != nil {
		s.engineError(w, r, "failed to list achievements", err)
		return
	}
	if awarded == nil {
		awarded = []*domain.AwardedAchievement{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"achievements": awarded,
	})
}

// Recommendation handlers

func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		activeOnly, err = strconv.ParseBool(raw)
		if err != nil {
			s.engineError(w, r, "invalid query", domain.NewValidationError("active_only", "must be a boolean"))
			return
		}
	}

	recs, err := s.engine.ListRecommendations(r.Context(), learner, activeOnly)
	if err != nil {
		s.engineError(w, r, "failed to list recommendations", err)
		return
	}
	if recs == nil {
		recs = []*domain.Recommendation{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
	})
}

func (s *Server) handleRecommendationAction(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.engineError(w, r, "invalid recommendation", domain.NewValidationError("id", "must be a UUID"))
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.engineError(w, r, "invalid request", err)
		return
	}

	rec, err := s.engine.ActOnRecommendation(r.Context(), learner, id, req.Action)
	if err != nil {
		s.engineError(w, r, "failed to update recommendation", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleNextActivity(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.engine.SuggestNextActivity(r.Context(), learner))
}

// Preference handlers

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	prefs, err := s.engine.GetOrCreatePreferences(r.Context(), learner)
	if err != nil {
		s.engineError(w, r, "failed to load preferences", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	var patch domain.PreferencesPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.engineError(w, r, "invalid preferences", err)
		return
	}

	prefs, err := s.engine.UpdatePreferences(r.Context(), learner, patch)
	if err != nil {
		s.engineError(w, r, "failed to update preferences", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, prefs)
}

// Analytics handlers

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			s.engineError(w, r, "invalid query", domain.NewValidationError("days", "must be a positive integer"))
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, s.engine.AnalyzePatterns(r.Context(), learner, days))
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	struggle, err := strconv.ParseFloat(r.URL.Query().Get("struggle_time"), 64)
	if err != nil || struggle < 0 {
		s.engineError(w, r, "invalid query", domain.NewValidationError("struggle_time", "must be a non-negative number of seconds"))
		return
	}

	decision := s.engine.GetHintDecision(r.Context(), learner, struggle)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"show_hint": decision.Value,
		"fallback":  decision.Fallback,
	})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	skills, err := s.engine.ListSkills(r.Context(), learner)
	if err != nil {
		s.engineError(w, r, "failed to list skills", err)
		return
	}
	if skills == nil {
		skills = map[string]*domain.SkillAssessment{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"skills": skills,
	})
}

func (s *Server) handleTutorial(w http.ResponseWriter, r *http.Request) {
	learner, err := learnerID(r)
	if err != nil {
		s.engineError(w, r, "invalid learner", err)
		return
	}
	cfg := s.engine.TutorialConfig(r.Context(), learner, r.PathValue("type"))
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"tutorial": cfg.Value,
		"fallback": cfg.Fallback,
	})
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil || v <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return v, nil
}

func exerciseTypeParam(r *http.Request) string {
	if t := r.URL.Query().Get("exercise_type"); t != "" {
		return t
	}
	return domain.ExerciseTypeSimulation
}
