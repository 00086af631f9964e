package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/cyberquest/internal/achievement"
	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/storage/memory"
	"github.com/google/uuid"
)

// brokenStore fails the reads the daemon surfaces as errors.
type brokenStore struct {
	*memory.Store
}

var errDown = errors.New("database is down")

func (brokenStore) Ping(context.Context) error { return errDown }

func (brokenStore) ListProgress(context.Context, uuid.UUID, string) ([]*domain.ProgressRecord, error) {
	return nil, errDown
}

func (brokenStore) ListSkillAssessments(context.Context, uuid.UUID) ([]*domain.SkillAssessment, error) {
	return nil, errDown
}

// setupTestServer creates a server over store with rate limiting disabled
func setupTestServer(t *testing.T, store engine.Store) *Server {
	t.Helper()

	cfg := config.DefaultLocalConfig(t.TempDir())
	cfg.Storage.Driver = config.DriverMemory
	cfg.Daemon.Port = 0
	cfg.Daemon.RateLimit = 0

	svc := engine.NewService(store, engine.Config{
		TierPolicy:   domain.StandardTiers,
		Achievements: achievement.DefaultRules(),
	})

	server, err := NewServer(ServerConfig{Config: cfg, Engine: svc})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return server
}

func do(t *testing.T, s *Server, method, path string, learner uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if learner != uuid.Nil {
		req.Header.Set(LearnerIDHeader, learner.String())
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() without config should error")
	}
	cfg := config.DefaultLocalConfig(t.TempDir())
	if _, err := NewServer(ServerConfig{Config: cfg}); err == nil {
		t.Error("NewServer() without engine should error")
	}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		store      engine.Store
		wantStatus int
		wantBody   string
	}{
		{"healthy", memory.New(), http.StatusOK, "healthy"},
		{"store down", brokenStore{memory.New()}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t, tt.store)
			rec := do(t, s, http.MethodGet, "/v1/health", uuid.Nil, nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp map[string]interface{}
			decode(t, rec, &resp)
			if resp["status"] != tt.wantBody {
				t.Errorf("status field = %v, want %s", resp["status"], tt.wantBody)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := setupTestServer(t, memory.New())
	rec := do(t, s, http.MethodGet, "/v1/status", uuid.Nil, nil)

	var resp map[string]interface{}
	decode(t, rec, &resp)
	if resp["version"] != Version {
		t.Errorf("version = %v, want %s", resp["version"], Version)
	}
	if resp["storage"] != config.DriverMemory {
		t.Errorf("storage = %v, want memory", resp["storage"])
	}
}

func TestLearnerHeaderRequired(t *testing.T) {
	s := setupTestServer(t, memory.New())

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not a uuid", "learner-42"},
		{"nil uuid", uuid.Nil.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
			if tt.header != "" {
				req.Header.Set(LearnerIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSubmitProgress(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	rec := do(t, s, http.MethodPost, "/v1/progress", learner, map[string]interface{}{
		"exercise_id": 1,
		"score":       100,
		"time_spent":  300,
		"hints_used":  0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp engine.SubmitResult
	decode(t, rec, &resp)
	if resp.XPEarned <= 0 {
		t.Errorf("XPEarned = %d, want positive", resp.XPEarned)
	}
	if len(resp.Achievements) != 4 {
		t.Errorf("achievements = %d, want 4", len(resp.Achievements))
	}
	if resp.Summary.CompletedCount != 1 {
		t.Errorf("CompletedCount = %d, want 1", resp.Summary.CompletedCount)
	}
	if resp.Progress.Status != domain.StatusCompleted {
		t.Errorf("Status = %s, want completed", resp.Progress.Status)
	}
}

func TestSubmitProgress_Validation(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", "{not json"},
		{"missing score", map[string]interface{}{"exercise_id": 1, "time_spent": 10}},
		{"score out of range", map[string]interface{}{"exercise_id": 1, "score": 101, "time_spent": 10}},
		{"missing time", map[string]interface{}{"exercise_id": 1, "score": 50}},
		{"bad exercise", map[string]interface{}{"exercise_id": 0, "score": 50, "time_spent": 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/progress", learner, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}

	// Nothing was written.
	rec := do(t, s, http.MethodGet, "/v1/stats", learner, nil)
	var stats map[string]interface{}
	decode(t, rec, &stats)
	if stats["completed_levels"] != float64(0) {
		t.Errorf("completed_levels = %v, want 0", stats["completed_levels"])
	}
}

func TestDifficultyEndpoint(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	rec := do(t, s, http.MethodGet, "/v1/difficulty/1", learner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	decode(t, rec, &resp)
	if resp["difficulty"] != string(domain.DifficultyNormal) {
		t.Errorf("difficulty = %v, want normal", resp["difficulty"])
	}
	if resp["exercise_type"] != domain.ExerciseTypeSimulation {
		t.Errorf("exercise_type = %v, want simulation", resp["exercise_type"])
	}

	rec = do(t, s, http.MethodGet, "/v1/difficulty/abc", learner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric exercise status = %d, want 400", rec.Code)
	}
}

func TestStartAndResetExercise(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	rec := do(t, s, http.MethodPost, "/v1/exercises/2/start", learner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", rec.Code)
	}
	var record domain.ProgressRecord
	decode(t, rec, &record)
	if record.Status != domain.StatusInProgress {
		t.Errorf("Status = %s, want in_progress", record.Status)
	}

	rec = do(t, s, http.MethodDelete, "/v1/progress/2", learner, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("reset status = %d, want 200", rec.Code)
	}

	rec = do(t, s, http.MethodDelete, "/v1/progress/2", learner, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second reset status = %d, want 404", rec.Code)
	}
}

func TestLogAction(t *testing.T) {
	store := memory.New()
	s := setupTestServer(t, store)
	learner := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/v1/actions", bytes.NewReader([]byte(
		`{"exercise_id":1,"action_type":"hint_used","action_data":{"hint":2}}`)))
	req.Header.Set(LearnerIDHeader, learner.String())
	req.Header.Set("User-Agent", "cyberquest-test")
	req.RemoteAddr = "192.0.2.10:4321"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	var resp engine.LogResult
	decode(t, rec, &resp)
	if resp.Entry.Origin == nil || resp.Entry.Origin.IPAddress != "192.0.2.10" {
		t.Errorf("Origin = %+v, want ip 192.0.2.10", resp.Entry.Origin)
	}
	if resp.Entry.Origin != nil && resp.Entry.Origin.UserAgent != "cyberquest-test" {
		t.Errorf("UserAgent = %q, want cyberquest-test", resp.Entry.Origin.UserAgent)
	}

	rec = do(t, s, http.MethodPost, "/v1/actions", learner, map[string]interface{}{"exercise_id": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing action_type status = %d, want 400", rec.Code)
	}
}

func TestRecommendationsFlow(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	do(t, s, http.MethodPost, "/v1/progress", learner, map[string]interface{}{
		"exercise_id": 1, "score": 80, "time_spent": 600, "hints_used": 1,
	})

	rec := do(t, s, http.MethodGet, "/v1/recommendations", learner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var list struct {
		Recommendations []*domain.Recommendation `json:"recommendations"`
	}
	decode(t, rec, &list)
	if len(list.Recommendations) == 0 {
		t.Fatal("expected at least one recommendation")
	}
	id := list.Recommendations[0].ID

	rec = do(t, s, http.MethodPost, "/v1/recommendations/"+id.String()+"/action", learner, map[string]string{"action": "accept"})
	if rec.Code != http.StatusOK {
		t.Fatalf("action status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var updated domain.Recommendation
	decode(t, rec, &updated)
	if updated.Status != domain.RecAccepted {
		t.Errorf("Status = %s, want accept", updated.Status)
	}

	tests := []struct {
		name   string
		path   string
		action string
		want   int
	}{
		{"unknown action", "/v1/recommendations/" + id.String() + "/action", "snooze", http.StatusBadRequest},
		{"unknown id", "/v1/recommendations/" + uuid.NewString() + "/action", "dismiss", http.StatusNotFound},
		{"malformed id", "/v1/recommendations/xyz/action", "dismiss", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, learner, map[string]string{"action": tt.action})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec = do(t, s, http.MethodGet, "/v1/recommendations?active_only=maybe", learner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad active_only status = %d, want 400", rec.Code)
	}
}

func TestPreferences(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	rec := do(t, s, http.MethodGet, "/v1/preferences", learner, nil)
	var prefs domain.Preferences
	decode(t, rec, &prefs)
	if prefs.LearningStyle != domain.StyleBalanced {
		t.Errorf("LearningStyle = %s, want balanced", prefs.LearningStyle)
	}

	rec = do(t, s, http.MethodPatch, "/v1/preferences", learner, map[string]interface{}{"preferred_pace": "fast"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", rec.Code)
	}
	decode(t, rec, &prefs)
	if prefs.PreferredPace != domain.PaceFast {
		t.Errorf("PreferredPace = %s, want fast", prefs.PreferredPace)
	}
	if prefs.HintFrequency != domain.HintNormal {
		t.Errorf("HintFrequency = %s, want unchanged normal", prefs.HintFrequency)
	}

	rec = do(t, s, http.MethodPatch, "/v1/preferences", learner, map[string]interface{}{"preferred_pace": "warp"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid pace status = %d, want 400", rec.Code)
	}
}

func TestHintEndpoint(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	tests := []struct {
		query    string
		wantCode int
		wantShow bool
	}{
		{"struggle_time=59", http.StatusOK, false},
		{"struggle_time=60", http.StatusOK, true},
		{"struggle_time=-1", http.StatusBadRequest, false},
		{"", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/v1/hint?"+tt.query, learner, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp map[string]interface{}
			decode(t, rec, &resp)
			if resp["show_hint"] != tt.wantShow {
				t.Errorf("show_hint = %v, want %v", resp["show_hint"], tt.wantShow)
			}
		})
	}
}

func TestAdvisoryEndpoints(t *testing.T) {
	s := setupTestServer(t, memory.New())
	learner := uuid.New()

	tests := []struct {
		path string
		key  string
	}{
		{"/v1/summary", "summary"},
		{"/v1/next-activity", "type"},
		{"/v1/patterns?days=7", "status"},
		{"/v1/skills", "skills"},
		{"/v1/stats", "total_levels"},
		{"/v1/achievements", "achievements"},
		{"/v1/tutorial/intro", "tutorial"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, learner, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
			}
			var resp map[string]interface{}
			decode(t, rec, &resp)
			if _, ok := resp[tt.key]; !ok {
				t.Errorf("response missing %q: %v", tt.key, resp)
			}
		})
	}

	rec := do(t, s, http.MethodGet, "/v1/patterns?days=0", learner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("days=0 status = %d, want 400", rec.Code)
	}
}

func TestPersistenceFailures(t *testing.T) {
	s := setupTestServer(t, brokenStore{memory.New()})
	learner := uuid.New()

	for _, path := range []string{"/v1/stats", "/v1/skills"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, path, learner, nil)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
		})
	}

	// Advisory endpoints fall back instead of failing.
	rec := do(t, s, http.MethodGet, "/v1/summary", learner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	decode(t, rec, &resp)
	if resp["fallback"] != true {
		t.Errorf("fallback = %v, want true", resp["fallback"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("score", "bad"), http.StatusBadRequest},
		{"not found", domain.ErrRecommendationNotFound, http.StatusNotFound},
		{"persistence", domain.ErrPersistenceUnavailable, http.StatusServiceUnavailable},
		{"other", errDown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
