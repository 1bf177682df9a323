package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/research"
)

// Service owns the research job lifecycle: rows in research_jobs plus a
// background worker per job that drives the research engine.
type Service struct {
	DB       *database.PostgresDB
	Cfg      research.Config
	LLM      research.LLM
	Embedder research.Embedder
	Index    research.VectorIndex
}

func NewService(db *database.PostgresDB, cfg research.Config, llm research.LLM, embedder research.Embedder, index research.VectorIndex) *Service {
	return &Service{
		DB:       db,
		Cfg:      cfg,
		LLM:      llm,
		Embedder: embedder,
		Index:    index,
	}
}

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Question   string          `json:"question"`
	Status     string          `json:"status"`
	Answer     *string         `json:"answer,omitempty"`
	Reason     *string         `json:"reason,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Config     json.RawMessage `json:"config"`
}

type CreateJobRequest struct {
	Question string `json:"question"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	configJSON, _ := json.Marshal(map[string]interface{}{
		"model":                 s.Cfg.Model,
		"max_iterations":        s.Cfg.MaxIterations,
		"confidence_threshold":  s.Cfg.ConfidenceThreshold,
		"queries_per_iteration": s.Cfg.QueriesPerIteration,
	})

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, question, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, question, status, created_at, updated_at
	`

	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, jobID, req.Question, configJSON).Scan(
		&job.ID, &job.Question, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	go s.runWorker(job.ID, req.Question)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, question, status, answer, reason, confidence, created_at, updated_at, config
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Question, &job.Status, &job.Answer, &job.Reason, &job.Confidence,
		&job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, question, status, answer, reason, confidence, created_at, updated_at, config
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Question, &job.Status, &job.Answer, &job.Reason, &job.Confidence,
			&job.CreatedAt, &job.UpdatedAt, &job.Config); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (s *Service) runWorker(jobID uuid.UUID, question string) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	// Engine logs go to the job's log table so clients can tail progress.
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))

	engine := research.NewEngine(s.Cfg, s.LLM, s.Embedder, s.Index, dbLogger)

	// Persist the evolving research state so a poll of the job row
	// shows queries and evidence as they accumulate.
	engine.OnStateUpdate = func(state research.ResearchState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			dbLogger.Error("Failed to marshal state", "error", err)
			return
		}

		_, err = s.DB.Pool.Exec(context.Background(),
			"UPDATE research_jobs SET state = $2, updated_at = NOW() WHERE id = $1",
			jobID, stateJSON)
		if err != nil {
			dbLogger.Error("Failed to save state to DB", "error", err)
		}
	}

	result := engine.Research(ctx, question, nil)

	status := "completed"
	if result.Reason == "error" {
		status = "failed"
	}

	_, err := s.DB.Pool.Exec(ctx,
		`UPDATE research_jobs
		 SET status = $2, answer = $3, reason = $4, confidence = $5, updated_at = NOW()
		 WHERE id = $1`,
		jobID, status, result.Answer, result.Reason, result.Confidence)
	if err != nil {
		dbLogger.Error("Failed to save final answer to DB", "error", err)
	}

	dbLogger.Info("Research job finished",
		"status", status,
		"reason", result.Reason,
		"iterations", result.Iterations,
		"evidence_count", result.EvidenceCount,
		"confidence", result.Confidence)
}
