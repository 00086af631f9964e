// Package engine is the entry point of the adaptive learning engine. It wires
// the scoring components to a Store and runs the submission flow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/achievement"
	"github.com/felixgeelhaar/cyberquest/internal/adaptive"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/patterns"
	"github.com/felixgeelhaar/cyberquest/internal/progress"
	"github.com/felixgeelhaar/cyberquest/internal/recommend"
	"github.com/felixgeelhaar/cyberquest/internal/skill"
)

// Config tunes the engine.
type Config struct {
	TierPolicy   domain.TierPolicy
	Achievements achievement.Rules
	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// Service exposes the engine operations.
type Service struct {
	store Store
	now   func() time.Time
	locks *keyedLocks

	aggregator   *progress.Aggregator
	difficulty   *adaptive.DifficultyAdapter
	hints        *adaptive.HintPolicy
	tutorials    *adaptive.TutorialAdvisor
	skills       *skill.Tracker
	analyzer     *patterns.Analyzer
	recommender  *recommend.Engine
	achievements *achievement.Engine

	events *domain.EventDispatcher // Optional: receives domain events
}

// NewService creates the engine over store.
func NewService(store Store, cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	agg := progress.NewAggregator(store, clock)
	tracker := skill.NewTracker(store, cfg.TierPolicy, clock)

	return &Service{
		store:        store,
		now:          clock,
		locks:        newKeyedLocks(),
		aggregator:   agg,
		difficulty:   adaptive.NewDifficultyAdapter(agg, store),
		hints:        adaptive.NewHintPolicy(store),
		tutorials:    adaptive.NewTutorialAdvisor(store, store, clock),
		skills:       tracker,
		analyzer:     patterns.NewAnalyzer(store, clock),
		recommender:  recommend.NewEngine(store, agg, tracker, clock),
		achievements: achievement.NewEngine(store, agg, cfg.Achievements, clock),
	}
}

// SetEventDispatcher sets the dispatcher that receives domain events.
func (s *Service) SetEventDispatcher(d *domain.EventDispatcher) {
	s.events = d
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return persistenceErr("ping store", err)
	}
	return nil
}

// persistenceErr wraps a store failure. Validation and not-found errors keep
// their identity; anything else is reported as ErrPersistenceUnavailable.
func persistenceErr(op string, err error) error {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistenceUnavailable, err)
}
