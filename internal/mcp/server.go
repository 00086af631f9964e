// Package mcp exposes the advisory engine operations as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/patterns"
	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/google/uuid"
)

// Server wraps the MCP server with CyberQuest functionality
type Server struct {
	mcpServer *server.Server
	engine    *engine.Service
}

// Config contains configuration for the MCP server
type Config struct {
	Engine  *engine.Service
	Version string
}

// NewServer creates a new MCP server for CyberQuest
func NewServer(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	s := &Server{engine: cfg.Engine}

	s.mcpServer = server.New(server.Info{
		Name:    "cyberquest",
		Version: version,
	}, server.WithInstructions(`
CyberQuest is an adaptive cybersecurity learning engine.
Every tool takes the learner_id (UUID) of the learner being coached.

Available tools:
- cyberquest_difficulty: Recommended difficulty for an exercise
- cyberquest_next_activity: What the learner should do next
- cyberquest_hint: Whether a hint is due after a struggle period
- cyberquest_summary: XP, rank, streak and completion summary
- cyberquest_patterns: Activity patterns over a trailing window
`))

	s.registerTools()
	return s
}

// registerTools registers all CyberQuest MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("cyberquest_difficulty").
		Description("Recommend easy, normal or hard for an exercise based on the learner's history.").
		Handler(s.handleDifficulty)

	s.mcpServer.Tool("cyberquest_next_activity").
		Description("Suggest the learner's next activity: a simulation level, team mode, skill practice or review.").
		Handler(s.handleNextActivity)

	s.mcpServer.Tool("cyberquest_hint").
		Description("Decide whether to offer a hint after the learner has struggled for a number of seconds.").
		Handler(s.handleHint)

	s.mcpServer.Tool("cyberquest_summary").
		Description("Summarize the learner's progress: XP, rank, streak and completed exercises.").
		Handler(s.handleSummary)

	s.mcpServer.Tool("cyberquest_patterns").
		Description("Analyze when and how the learner practices over a trailing window of days.").
		Handler(s.handlePatterns)
}

// Input/Output types for tools

type LearnerInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner UUID"`
}

type DifficultyInput struct {
	LearnerID    string `json:"learner_id" jsonschema:"description=Learner UUID"`
	ExerciseID   int    `json:"exercise_id" jsonschema:"description=Exercise or level number starting at 1"`
	ExerciseType string `json:"exercise_type,omitempty" jsonschema:"description=Exercise type,enum=simulation,enum=blue_team_vs_red_team"`
}

type DifficultyOutput struct {
	ExerciseID   int    `json:"exercise_id"`
	ExerciseType string `json:"exercise_type"`
	Difficulty   string `json:"difficulty"`
	Fallback     bool   `json:"fallback"`
}

type HintInput struct {
	LearnerID       string  `json:"learner_id" jsonschema:"description=Learner UUID"`
	StruggleSeconds float64 `json:"struggle_seconds" jsonschema:"description=Seconds the learner has been stuck"`
}

type HintOutput struct {
	ShowHint bool   `json:"show_hint"`
	Fallback bool   `json:"fallback"`
	Message  string `json:"message"`
}

type SummaryOutput struct {
	Summary  domain.Summary `json:"summary"`
	Fallback bool           `json:"fallback"`
	Message  string         `json:"message"`
}

type PatternsInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner UUID"`
	Days      int    `json:"days,omitempty" jsonschema:"description=Trailing window in days (default 30)"`
}

func (s *Server) handleDifficulty(ctx context.Context, input DifficultyInput) (DifficultyOutput, error) {
	learner, err := parseLearner(input.LearnerID)
	if err != nil {
		return DifficultyOutput{}, err
	}
	if input.ExerciseID <= 0 {
		return DifficultyOutput{}, fmt.Errorf("exercise_id must be positive")
	}
	exerciseType := input.ExerciseType
	if exerciseType == "" {
		exerciseType = domain.ExerciseTypeSimulation
	}

	d := s.engine.GetDifficulty(ctx, learner, input.ExerciseID, exerciseType)
	return DifficultyOutput{
		ExerciseID:   input.ExerciseID,
		ExerciseType: exerciseType,
		Difficulty:   string(d.Value),
		Fallback:     d.Fallback,
	}, nil
}

func (s *Server) handleNextActivity(ctx context.Context, input LearnerInput) (engine.Activity, error) {
	learner, err := parseLearner(input.LearnerID)
	if err != nil {
		return engine.Activity{}, err
	}
	return s.engine.SuggestNextActivity(ctx, learner), nil
}

func (s *Server) handleHint(ctx context.Context, input HintInput) (HintOutput, error) {
	learner, err := parseLearner(input.LearnerID)
	if err != nil {
		return HintOutput{}, err
	}
	if input.StruggleSeconds < 0 {
		return HintOutput{}, fmt.Errorf("struggle_seconds must not be negative")
	}

	decision := s.engine.GetHintDecision(ctx, learner, input.StruggleSeconds)
	msg := "Let the learner keep working."
	if decision.Value {
		msg = "Offer a hint now."
	}
	return HintOutput{ShowHint: decision.Value, Fallback: decision.Fallback, Message: msg}, nil
}

func (s *Server) handleSummary(ctx context.Context, input LearnerInput) (SummaryOutput, error) {
	learner, err := parseLearner(input.LearnerID)
	if err != nil {
		return SummaryOutput{}, err
	}

	summary := s.engine.Summary(ctx, learner)
	v := summary.Value
	parts := []string{
		fmt.Sprintf("Rank: %s", v.Rank),
		fmt.Sprintf("XP: %d", v.TotalXP),
		fmt.Sprintf("Completed: %d/%d", v.CompletedCount, v.TotalExercises),
		fmt.Sprintf("Streak: %d days", v.Streak),
	}
	return SummaryOutput{
		Summary:  v,
		Fallback: summary.Fallback,
		Message:  strings.Join(parts, " | "),
	}, nil
}

func (s *Server) handlePatterns(ctx context.Context, input PatternsInput) (patterns.Analysis, error) {
	learner, err := parseLearner(input.LearnerID)
	if err != nil {
		return patterns.Analysis{}, err
	}
	if input.Days < 0 {
		return patterns.Analysis{}, fmt.Errorf("days must not be negative")
	}
	return *s.engine.AnalyzePatterns(ctx, learner, input.Days), nil
}

func parseLearner(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("learner_id must be a UUID: %q", raw)
	}
	return id, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
