// Package memory provides a thread-safe in-process Store with optional JSON
// snapshots.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Store keeps all state in maps guarded by a single lock.
type Store struct {
	mu sync.RWMutex

	progress        map[domain.ExerciseKey]*domain.ProgressRecord
	preferences     map[uuid.UUID]*domain.Preferences
	actions         []*domain.ActionLogEntry
	skills          []*domain.SkillAssessment
	recommendations map[uuid.UUID]*domain.Recommendation
	awards          []*domain.AwardedAchievement
}

// New creates an empty store.
func New() *Store {
	return &Store{
		progress:        make(map[domain.ExerciseKey]*domain.ProgressRecord),
		preferences:     make(map[uuid.UUID]*domain.Preferences),
		recommendations: make(map[uuid.UUID]*domain.Recommendation),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// GetProgress returns a copy of the record for key.
func (s *Store) GetProgress(_ context.Context, key domain.ExerciseKey) (*domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[key]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProgress returns the learner's records ordered by exercise.
func (s *Store) ListProgress(_ context.Context, learnerID uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ProgressRecord
	for k, p := range s.progress {
		if k.LearnerID != learnerID || (exerciseType != "" && k.ExerciseType != exerciseType) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExerciseType != out[j].ExerciseType {
			return out[i].ExerciseType > out[j].ExerciseType
		}
		return out[i].ExerciseID < out[j].ExerciseID
	})
	return out, nil
}

// UpsertProgress stores a copy of p.
func (s *Store) UpsertProgress(_ context.Context, p *domain.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.progress[p.Key()] = &cp
	return nil
}

// UpdateProgress applies fn under the store lock.
func (s *Store) UpdateProgress(_ context.Context, key domain.ExerciseKey, fn domain.ProgressUpdate) (*domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *domain.ProgressRecord
	if p, ok := s.progress[key]; ok {
		cp := *p
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	stored := *next
	s.progress[key] = &stored
	return next, nil
}

// DeleteProgress removes the record for key.
func (s *Store) DeleteProgress(_ context.Context, key domain.ExerciseKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.progress[key]; !ok {
		return domain.ErrProgressNotFound
	}
	delete(s.progress, key)
	return nil
}

// GetPreferences returns a copy of the learner's preferences.
func (s *Store) GetPreferences(_ context.Context, learnerID uuid.UUID) (*domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preferences[learnerID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	cp := *p
	return &cp, nil
}

// UpsertPreferences stores a copy of p.
func (s *Store) UpsertPreferences(_ context.Context, p *domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.preferences[p.LearnerID] = &cp
	return nil
}

// AppendActionLog appends a copy of e.
func (s *Store) AppendActionLog(_ context.Context, e *domain.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.actions = append(s.actions, &cp)
	return nil
}

// ListActionLog returns entries at or after since in timestamp order.
func (s *Store) ListActionLog(_ context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ActionLogEntry
	for _, e := range s.actions {
		if e.LearnerID == learnerID && !e.Timestamp.Before(since) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AppendSkillAssessment appends a copy of a.
func (s *Store) AppendSkillAssessment(_ context.Context, a *domain.SkillAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.skills = append(s.skills, &cp)
	return nil
}

// ListSkillAssessments returns the learner's assessments oldest first.
func (s *Store) ListSkillAssessments(_ context.Context, learnerID uuid.UUID) ([]*domain.SkillAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.SkillAssessment
	for _, a := range s.skills {
		if a.LearnerID == learnerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListRecommendations returns recommendations newest first.
func (s *Store) ListRecommendations(_ context.Context, learnerID uuid.UUID, activeOnly bool, now time.Time) ([]*domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Recommendation
	for _, r := range s.recommendations {
		if r.LearnerID != learnerID || (activeOnly && !r.Active(now)) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpsertRecommendation stores a copy of rec.
func (s *Store) UpsertRecommendation(_ context.Context, rec *domain.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recommendations[rec.ID] = &cp
	return nil
}

// AppendAwardedAchievement appends a copy of a.
func (s *Store) AppendAwardedAchievement(_ context.Context, a *domain.AwardedAchievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.awards = append(s.awards, &cp)
	return nil
}

// ListAwardedAchievements returns the learner's awards oldest first.
func (s *Store) ListAwardedAchievements(_ context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.AwardedAchievement
	for _, a := range s.awards {
		if a.LearnerID == learnerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// snapshot is the on-disk form of the store.
type snapshot struct {
	Progress        []*domain.ProgressRecord     `json:"progress"`
	Preferences     []*domain.Preferences        `json:"preferences"`
	Actions         []*domain.ActionLogEntry     `json:"actions"`
	Skills          []*domain.SkillAssessment    `json:"skills"`
	Recommendations []*domain.Recommendation     `json:"recommendations"`
	Awards          []*domain.AwardedAchievement `json:"awards"`
}

// SaveSnapshot writes the whole store to path as JSON.
func (s *Store) SaveSnapshot(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Actions: s.actions,
		Skills:  s.skills,
		Awards:  s.awards,
	}
	for _, p := range s.progress {
		snap.Progress = append(snap.Progress, p)
	}
	for _, p := range s.preferences {
		snap.Preferences = append(snap.Preferences, p)
	}
	for _, r := range s.recommendations {
		snap.Recommendations = append(snap.Recommendations, r)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the store contents with the snapshot at path. A
// missing file leaves the store empty.
func (s *Store) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress = make(map[domain.ExerciseKey]*domain.ProgressRecord, len(snap.Progress))
	for _, p := range snap.Progress {
		s.progress[p.Key()] = p
	}
	s.preferences = make(map[uuid.UUID]*domain.Preferences, len(snap.Preferences))
	for _, p := range snap.Preferences {
		s.preferences[p.LearnerID] = p
	}
	s.recommendations = make(map[uuid.UUID]*domain.Recommendation, len(snap.Recommendations))
	for _, r := range snap.Recommendations {
		s.recommendations[r.ID] = r
	}
	s.actions = snap.Actions
	s.skills = snap.Skills
	s.awards = snap.Awards
	return nil
}
