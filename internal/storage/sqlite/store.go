package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Store implements the engine's persistence contract on SQLite. Timestamps
// are written in UTC so text comparison orders them.
type Store struct {
	db *DB
}

// NewStore wraps an opened and migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const progressColumns = `id, learner_id, exercise_id, exercise_type, status, score, max_score,
	completion_percentage, time_spent, attempts, xp_earned, hints_used, mistakes_made,
	started_at, completed_at, created_at, updated_at`

// GetProgress returns the record for key.
func (s *Store) GetProgress(ctx context.Context, key domain.ExerciseKey) (*domain.ProgressRecord, error) {
	return getProgress(ctx, s.db, key)
}

func getProgress(ctx context.Context, q queryer, key domain.ExerciseKey) (*domain.ProgressRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM progress
		WHERE learner_id = ? AND exercise_id = ? AND exercise_type = ?`,
		key.LearnerID.String(), key.ExerciseID, key.ExerciseType)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	return p, err
}

// ListProgress returns the learner's records, optionally of one exercise type.
func (s *Store) ListProgress(ctx context.Context, learnerID uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+progressColumns+` FROM progress
		WHERE learner_id = ? AND (? = '' OR exercise_type = ?)
		ORDER BY exercise_type DESC, exercise_id`,
		learnerID.String(), exerciseType, exerciseType)
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
	return upsertProgress(ctx, s.db, p)
}

func upsertProgress(ctx context.Context, q queryer, p *domain.ProgressRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, exercise_id, exercise_type) DO UPDATE SET
			status=excluded.status,
			score=excluded.score,
			max_score=excluded.max_score,
			completion_percentage=excluded.completion_percentage,
			time_spent=excluded.time_spent,
			attempts=excluded.attempts,
			xp_earned=excluded.xp_earned,
			hints_used=excluded.hints_used,
			mistakes_made=excluded.mistakes_made,
			started_at=excluded.started_at,
			completed_at=excluded.completed_at,
			updated_at=excluded.updated_at`,
		p.ID.String(), p.LearnerID.String(), p.ExerciseID, p.ExerciseType, string(p.Status),
		p.Score, p.MaxScore, p.CompletionPercentage, p.TimeSpent, p.Attempts, p.XPEarned,
		p.HintsUsed, p.MistakesMade, nullTime(p.StartedAt), nullTime(p.CompletedAt),
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// UpdateProgress reads, transforms and writes the record in one transaction.
func (s *Store) UpdateProgress(ctx context.Context, key domain.ExerciseKey, fn domain.ProgressUpdate) (*domain.ProgressRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin progress update: %w", err)
	}
	defer tx.Rollback()

	cur, err := getProgress(ctx, tx, key)
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
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit progress update: %w", err)
	}
	return next, nil
}

// DeleteProgress removes the record for key.
func (s *Store) DeleteProgress(ctx context.Context, key domain.ExerciseKey) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM progress WHERE learner_id = ? AND exercise_id = ? AND exercise_type = ?",
		key.LearnerID.String(), key.ExerciseID, key.ExerciseType)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}

// GetPreferences returns the learner's preferences.
func (s *Store) GetPreferences(ctx context.Context, learnerID uuid.UUID) (*domain.Preferences, error) {
	var p domain.Preferences
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT learner_id, learning_style, difficulty_preference, hint_frequency,
			preferred_pace, tutorial_skip_allowed, created_at, updated_at
		FROM preferences WHERE learner_id = ?`, learnerID.String()).Scan(
		&id, &p.LearningStyle, &p.DifficultyPreference, &p.HintFrequency,
		&p.PreferredPace, &p.TutorialSkipAllowed, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if p.LearnerID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse learner id: %w", err)
	}
	return &p, nil
}

// UpsertPreferences inserts or replaces the learner's preferences.
func (s *Store) UpsertPreferences(ctx context.Context, p *domain.Preferences) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (learner_id, learning_style, difficulty_preference,
			hint_frequency, preferred_pace, tutorial_skip_allowed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id) DO UPDATE SET
			learning_style=excluded.learning_style,
			difficulty_preference=excluded.difficulty_preference,
			hint_frequency=excluded.hint_frequency,
			preferred_pace=excluded.preferred_pace,
			tutorial_skip_allowed=excluded.tutorial_skip_allowed,
			updated_at=excluded.updated_at`,
		p.LearnerID.String(), string(p.LearningStyle), string(p.DifficultyPreference),
		string(p.HintFrequency), string(p.PreferredPace), p.TutorialSkipAllowed,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// AppendActionLog stores one action.
func (s *Store) AppendActionLog(ctx context.Context, e *domain.ActionLogEntry) error {
	var payload, ip, ua sql.NullString
	if len(e.Payload) > 0 {
		payload = sql.NullString{String: string(e.Payload), Valid: true}
	}
	if e.Origin != nil {
		ip = sql.NullString{String: e.Origin.IPAddress, Valid: e.Origin.IPAddress != ""}
		ua = sql.NullString{String: e.Origin.UserAgent, Valid: e.Origin.UserAgent != ""}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (id, learner_id, session_id, exercise_id, exercise_type,
			action_type, payload, ip_address, user_agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.LearnerID.String(), e.SessionID, e.ExerciseID, e.ExerciseType,
		e.ActionType, payload, ip, ua, e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// ListActionLog returns the learner's actions at or after since, oldest first.
func (s *Store) ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, learner_id, session_id, exercise_id, exercise_type, action_type,
			payload, ip_address, user_agent, timestamp
		FROM action_log
		WHERE learner_id = ? AND timestamp >= ?
		ORDER BY timestamp`, learnerID.String(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []*domain.ActionLogEntry
	for rows.Next() {
		var (
			e               domain.ActionLogEntry
			id, learner     string
			payload, ip, ua sql.NullString
		)
		if err := rows.Scan(&id, &learner, &e.SessionID, &e.ExerciseID, &e.ExerciseType,
			&e.ActionType, &payload, &ip, &ua, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse action id: %w", err)
		}
		e.LearnerID = learnerID
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		if ip.Valid || ua.Valid {
			e.Origin = &domain.Origin{IPAddress: ip.String, UserAgent: ua.String}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// AppendSkillAssessment stores one assessment.
func (s *Store) AppendSkillAssessment(ctx context.Context, a *domain.SkillAssessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skill_assessments (id, learner_id, skill_name, exercise_id,
			exercise_type, score, max_score, tier, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.LearnerID.String(), a.SkillName, a.ExerciseID, a.ExerciseType,
		a.Score, a.MaxScore, string(a.Tier), a.AssessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append skill assessment: %w", err)
	}
	return nil
}

// ListSkillAssessments returns the learner's assessments oldest first.
func (s *Store) ListSkillAssessments(ctx context.Context, learnerID uuid.UUID) ([]*domain.SkillAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, skill_name, exercise_id, exercise_type, score, max_score, tier, assessed_at
		FROM skill_assessments
		WHERE learner_id = ?
		ORDER BY assessed_at, rowid`, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("list skill assessments: %w", err)
	}
	defer rows.Close()

	var out []*domain.SkillAssessment
	for rows.Next() {
		a := domain.SkillAssessment{LearnerID: learnerID}
		var id string
		if err := rows.Scan(&id, &a.SkillName, &a.ExerciseID, &a.ExerciseType,
			&a.Score, &a.MaxScore, &a.Tier, &a.AssessedAt); err != nil {
			return nil, fmt.Errorf("scan skill assessment: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse assessment id: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ListRecommendations returns recommendations newest first.
func (s *Store) ListRecommendations(ctx context.Context, learnerID uuid.UUID, activeOnly bool, now time.Time) ([]*domain.Recommendation, error) {
	query := `
		SELECT id, type, target_exercise_id, target_exercise_type, target_skill,
			payload, confidence, status, created_at, expires_at, acted_on_at
		FROM recommendations
		WHERE learner_id = ?`
	args := []any{learnerID.String()}
	if activeOnly {
		query += " AND status = ? AND expires_at > ?"
		args = append(args, string(domain.RecPending), now.UTC())
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recommendation
	for rows.Next() {
		r := domain.Recommendation{LearnerID: learnerID}
		var (
			id, payload string
			target      sql.NullInt64
			actedOn     sql.NullTime
		)
		if err := rows.Scan(&id, &r.Type, &target, &r.TargetExerciseType, &r.TargetSkill,
			&payload, &r.Confidence, &r.Status, &r.CreatedAt, &r.ExpiresAt, &actedOn); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse recommendation id: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal recommendation payload: %w", err)
		}
		if target.Valid {
			v := int(target.Int64)
			r.TargetExerciseID = &v
		}
		if actedOn.Valid {
			r.ActedOnAt = &actedOn.Time
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpsertRecommendation inserts rec or updates its status.
func (s *Store) UpsertRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal recommendation payload: %w", err)
	}
	var target sql.NullInt64
	if rec.TargetExerciseID != nil {
		target = sql.NullInt64{Int64: int64(*rec.TargetExerciseID), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recommendations (id, learner_id, type, target_exercise_id,
			target_exercise_type, target_skill, payload, confidence, status,
			created_at, expires_at, acted_on_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			acted_on_at=excluded.acted_on_at`,
		rec.ID.String(), rec.LearnerID.String(), string(rec.Type), target,
		rec.TargetExerciseType, rec.TargetSkill, string(payload), rec.Confidence,
		string(rec.Status), rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(), nullTime(rec.ActedOnAt),
	)
	if err != nil {
		return fmt.Errorf("upsert recommendation: %w", err)
	}
	return nil
}

// AppendAwardedAchievement records an award.
func (s *Store) AppendAwardedAchievement(ctx context.Context, a *domain.AwardedAchievement) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO awarded_achievements (learner_id, achievement_id, awarded_at) VALUES (?, ?, ?)",
		a.LearnerID.String(), a.AchievementID, a.AwardedAt.UTC())
	if err != nil {
		return fmt.Errorf("append achievement: %w", err)
	}
	return nil
}

// ListAwardedAchievements returns the learner's awards oldest first.
func (s *Store) ListAwardedAchievements(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT achievement_id, awarded_at FROM awarded_achievements
		WHERE learner_id = ? ORDER BY awarded_at, rowid`, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []*domain.AwardedAchievement
	for rows.Next() {
		a := domain.AwardedAchievement{LearnerID: learnerID}
		if err := rows.Scan(&a.AchievementID, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (*domain.ProgressRecord, error) {
	var (
		p                  domain.ProgressRecord
		id, learner        string
		started, completed sql.NullTime
	)
	err := row.Scan(&id, &learner, &p.ExerciseID, &p.ExerciseType, &p.Status, &p.Score,
		&p.MaxScore, &p.CompletionPercentage, &p.TimeSpent, &p.Attempts, &p.XPEarned,
		&p.HintsUsed, &p.MistakesMade, &started, &completed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse progress id: %w", err)
	}
	if p.LearnerID, err = uuid.Parse(learner); err != nil {
		return nil, fmt.Errorf("parse learner id: %w", err)
	}
	if started.Valid {
		p.StartedAt = &started.Time
	}
	if completed.Valid {
		p.CompletedAt = &completed.Time
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
