package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"
)

// Store implements the engine's persistence contract on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connected pool. Run Migrate first.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// dbtx is satisfied by the pool and by transactions.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const progressColumns = `id, learner_id, exercise_id, exercise_type, status, score, max_score,
	completion_percentage, time_spent, attempts, xp_earned, hints_used, mistakes_made,
	started_at, completed_at, created_at, updated_at`

// GetProgress returns the record for key.
func (s *Store) GetProgress(ctx context.Context, key domain.ExerciseKey) (*domain.ProgressRecord, error) {
	return getProgress(ctx, s.pool, key, "")
}

func getProgress(ctx context.Context, q dbtx, key domain.ExerciseKey, suffix string) (*domain.ProgressRecord, error) {
	row := q.QueryRow(ctx, `SELECT `+progressColumns+` FROM progress
		WHERE learner_id = $1 AND exercise_id = $2 AND exercise_type = $3`+suffix,
		key.LearnerID, key.ExerciseID, key.ExerciseType)
	p, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	return p, err
}

// ListProgress returns the learner's records, optionally of one exercise type.
func (s *Store) ListProgress(ctx context.Context, learnerID uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+progressColumns+` FROM progress
		WHERE learner_id = $1 AND ($2 = '' OR exercise_type = $2)
		ORDER BY exercise_type DESC, exercise_id`, learnerID, exerciseType)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProgressRecord
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertProgress inserts p or replaces the record with the same key.
func (s *Store) UpsertProgress(ctx context.Context, p *domain.ProgressRecord) error {
	return upsertProgress(ctx, s.pool, p)
}

func upsertProgress(ctx context.Context, q dbtx, p *domain.ProgressRecord) error {
	_, err := q.Exec(ctx, `
		INSERT INTO progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (learner_id, exercise_id, exercise_type) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			max_score = EXCLUDED.max_score,
			completion_percentage = EXCLUDED.completion_percentage,
			time_spent = EXCLUDED.time_spent,
			attempts = EXCLUDED.attempts,
			xp_earned = EXCLUDED.xp_earned,
			hints_used = EXCLUDED.hints_used,
			mistakes_made = EXCLUDED.mistakes_made,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.LearnerID, p.ExerciseID, p.ExerciseType, string(p.Status),
		p.Score, p.MaxScore, p.CompletionPercentage, p.TimeSpent, p.Attempts, p.XPEarned,
		p.HintsUsed, p.MistakesMade, p.StartedAt, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// UpdateProgress runs fn inside a transaction holding an advisory lock on
// the key, so concurrent daemons serialize even before the row exists.
func (s *Store) UpdateProgress(ctx context.Context, key domain.ExerciseKey, fn domain.ProgressUpdate) (*domain.ProgressRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin progress update: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("%s/%d/%s", key.LearnerID, key.ExerciseID, key.ExerciseType)
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey); err != nil {
		return nil, fmt.Errorf("lock progress: %w", err)
	}

	cur, err := getProgress(ctx, tx, key, " FOR UPDATE")
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := upsertProgress(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit progress update: %w", err)
	}
	return next, nil
}

// DeleteProgress removes the record for key.
func (s *Store) DeleteProgress(ctx context.Context, key domain.ExerciseKey) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM progress WHERE learner_id = $1 AND exercise_id = $2 AND exercise_type = $3",
		key.LearnerID, key.ExerciseID, key.ExerciseType)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}

// GetPreferences returns the learner's preferences.
func (s *Store) GetPreferences(ctx context.Context, learnerID uuid.UUID) (*domain.Preferences, error) {
	p := &domain.Preferences{}
	err := s.pool.QueryRow(ctx, `
		SELECT learner_id, learning_style, difficulty_preference, hint_frequency,
			preferred_pace, tutorial_skip_allowed, created_at, updated_at
		FROM preferences WHERE learner_id = $1`, learnerID).Scan(
		&p.LearnerID, &p.LearningStyle, &p.DifficultyPreference, &p.HintFrequency,
		&p.PreferredPace, &p.TutorialSkipAllowed, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// UpsertPreferences inserts or replaces the learner's preferences.
func (s *Store) UpsertPreferences(ctx context.Context, p *domain.Preferences) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (learner_id, learning_style, difficulty_preference,
			hint_frequency, preferred_pace, tutorial_skip_allowed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (learner_id) DO UPDATE SET
			learning_style = EXCLUDED.learning_style,
			difficulty_preference = EXCLUDED.difficulty_preference,
			hint_frequency = EXCLUDED.hint_frequency,
			preferred_pace = EXCLUDED.preferred_pace,
			tutorial_skip_allowed = EXCLUDED.tutorial_skip_allowed,
			updated_at = EXCLUDED.updated_at`,
		p.LearnerID, string(p.LearningStyle), string(p.DifficultyPreference),
		string(p.HintFrequency), string(p.PreferredPace), p.TutorialSkipAllowed,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// AppendActionLog stores one action. Payload and origin are nullable JSONB.
func (s *Store) AppendActionLog(ctx context.Context, e *domain.ActionLogEntry) error {
	var payload, origin pqtype.NullRawMessage
	if len(e.Payload) > 0 {
		payload = pqtype.NullRawMessage{RawMessage: e.Payload, Valid: true}
	}
	if e.Origin != nil {
		data, err := json.Marshal(e.Origin)
		if err != nil {
			return fmt.Errorf("marshal origin: %w", err)
		}
		origin = pqtype.NullRawMessage{RawMessage: data, Valid: true}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO action_log (id, learner_id, session_id, exercise_id, exercise_type,
			action_type, payload, origin, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.LearnerID, e.SessionID, e.ExerciseID, e.ExerciseType,
		e.ActionType, payload, origin, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// ListActionLog returns the learner's actions at or after since, oldest first.
func (s *Store) ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, exercise_id, exercise_type, action_type, payload, origin, logged_at
		FROM action_log
		WHERE learner_id = $1 AND logged_at >= $2
		ORDER BY logged_at`, learnerID, since)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []*domain.ActionLogEntry
	for rows.Next() {
		e := &domain.ActionLogEntry{LearnerID: learnerID}
		var payload, origin []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ExerciseID, &e.ExerciseType,
			&e.ActionType, &payload, &origin, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		if len(origin) > 0 {
			e.Origin = &domain.Origin{}
			if err := json.Unmarshal(origin, e.Origin); err != nil {
				return nil, fmt.Errorf("unmarshal origin: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendSkillAssessment stores one assessment.
func (s *Store) AppendSkillAssessment(ctx context.Context, a *domain.SkillAssessment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO skill_assessments (id, learner_id, skill_name, exercise_id,
			exercise_type, score, max_score, tier, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.LearnerID, a.SkillName, a.ExerciseID, a.ExerciseType,
		a.Score, a.MaxScore, string(a.Tier), a.AssessedAt,
	)
	if err != nil {
		return fmt.Errorf("append skill assessment: %w", err)
	}
	return nil
}

// ListSkillAssessments returns the learner's assessments oldest first.
func (s *Store) ListSkillAssessments(ctx context.Context, learnerID uuid.UUID) ([]*domain.SkillAssessment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, skill_name, exercise_id, exercise_type, score, max_score, tier, assessed_at
		FROM skill_assessments
		WHERE learner_id = $1
		ORDER BY assessed_at, seq`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list skill assessments: %w", err)
	}
	defer rows.Close()

	var out []*domain.SkillAssessment
	for rows.Next() {
		a := &domain.SkillAssessment{LearnerID: learnerID}
		if err := rows.Scan(&a.ID, &a.SkillName, &a.ExerciseID, &a.ExerciseType,
			&a.Score, &a.MaxScore, &a.Tier, &a.AssessedAt); err != nil {
			return nil, fmt.Errorf("scan skill assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListRecommendations returns recommendations newest first.
func (s *Store) ListRecommendations(ctx context.Context, learnerID uuid.UUID, activeOnly bool, now time.Time) ([]*domain.Recommendation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, target_exercise_id, target_exercise_type, target_skill,
			payload, confidence, status, created_at, expires_at, acted_on_at
		FROM recommendations
		WHERE learner_id = $1
			AND (NOT $2 OR (status = $3 AND expires_at > $4))
		ORDER BY created_at DESC`,
		learnerID, activeOnly, string(domain.RecPending), now)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recommendation
	for rows.Next() {
		r := &domain.Recommendation{LearnerID: learnerID}
		var payload []byte
		if err := rows.Scan(&r.ID, &r.Type, &r.TargetExerciseID, &r.TargetExerciseType,
			&r.TargetSkill, &payload, &r.Confidence, &r.Status, &r.CreatedAt,
			&r.ExpiresAt, &r.ActedOnAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal recommendation payload: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRecommendation inserts rec or updates its status.
func (s *Store) UpsertRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal recommendation payload: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO recommendations (id, learner_id, type, target_exercise_id,
			target_exercise_type, target_skill, payload, confidence, status,
			created_at, expires_at, acted_on_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			acted_on_at = EXCLUDED.acted_on_at`,
		rec.ID, rec.LearnerID, string(rec.Type), rec.TargetExerciseID,
		rec.TargetExerciseType, rec.TargetSkill, payload, rec.Confidence,
		string(rec.Status), rec.CreatedAt, rec.ExpiresAt, rec.ActedOnAt,
	)
	if err != nil {
		return fmt.Errorf("upsert recommendation: %w", err)
	}
	return nil
}

// AppendAwardedAchievement records an award.
func (s *Store) AppendAwardedAchievement(ctx context.Context, a *domain.AwardedAchievement) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO awarded_achievements (learner_id, achievement_id, awarded_at) VALUES ($1, $2, $3)",
		a.LearnerID, a.AchievementID, a.AwardedAt)
	if err != nil {
		return fmt.Errorf("append achievement: %w", err)
	}
	return nil
}

// ListAwardedAchievements returns the learner's awards oldest first.
func (s *Store) ListAwardedAchievements(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT achievement_id, awarded_at FROM awarded_achievements
		WHERE learner_id = $1 ORDER BY seq`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []*domain.AwardedAchievement
	for rows.Next() {
		a := &domain.AwardedAchievement{LearnerID: learnerID}
		if err := rows.Scan(&a.AchievementID, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanProgress(row pgx.Row) (*domain.ProgressRecord, error) {
	p := &domain.ProgressRecord{}
	err := row.Scan(&p.ID, &p.LearnerID, &p.ExerciseID, &p.ExerciseType, &p.Status, &p.Score,
		&p.MaxScore, &p.CompletionPercentage, &p.TimeSpent, &p.Attempts, &p.XPEarned,
		&p.HintsUsed, &p.MistakesMade, &p.StartedAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	return p, nil
}
