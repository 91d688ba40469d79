package evaluation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus defines the lifecycle state of an evaluation job
type JobStatus string

const (
	JobStatusNew       JobStatus = "new"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// MetricBreakdown holds the per-question quality scores, each bounded to [0,1].
type MetricBreakdown struct {
	ContextRelevance  float64 `json:"context_relevance"`
	AnswerCorrectness float64 `json:"answer_correctness"`
	AnswerRelevancy   float64 `json:"answer_relevancy"`
	Faithfulness      float64 `json:"faithfulness"`
}

// CaseResult is the outcome of a single benchmark question. Exactly one of
// PredictedAnswer and Error is set; an errored case always carries zero metrics.
type CaseResult struct {
	Question        string          `json:"question"`
	GroundTruth     string          `json:"ground_truth"`
	PredictedAnswer *string         `json:"predicted_answer,omitempty"`
	Metrics         MetricBreakdown `json:"metrics"`
	Error           *string         `json:"error,omitempty"`
}

// ScoreSummary is the job-level aggregate, all fields bounded to [0,1].
type ScoreSummary struct {
	AvgContextRelevance  float64 `json:"avg_context_relevance"`
	AvgAnswerCorrectness float64 `json:"avg_answer_correctness"`
	AvgAnswerRelevancy   float64 `json:"avg_answer_relevancy"`
	AvgFaithfulness      float64 `json:"avg_faithfulness"`
	OverallScore         float64 `json:"overall_score"`
}

// Job represents one evaluation run against a participant endpoint.
// It is owned by the submission path until QUEUED and exclusively by the
// orchestrator from there on; a COMPLETED or FAILED job is immutable.
type Job struct {
	ID             string        `json:"id"`
	SubmitterID    string        `json:"submitter_id"`
	EndpointURL    string        `json:"endpoint_url"`
	Status         JobStatus     `json:"status"`
	TopK           int           `json:"top_k"`
	TotalCases     int           `json:"total_cases"`
	ProcessedCases int           `json:"processed_cases"`
	TotalScore     float64       `json:"total_score"`
	Results        []CaseResult  `json:"results"`
	Scores         *ScoreSummary `json:"scores,omitempty"`
	ErrorMessage   *string       `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
}

// NewJob builds a job in the NEW state with a fresh id.
func NewJob(submitterID, endpointURL string, topK int) *Job {
	return &Job{
		ID:          fmt.Sprintf("job_%s", uuid.NewString()),
		SubmitterID: submitterID,
		EndpointURL: endpointURL,
		Status:      JobStatusNew,
		TopK:        topK,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkQueued moves a NEW job to QUEUED, the persisted hand-off-ready state.
func (j *Job) MarkQueued() error {
	if j.Status != JobStatusNew {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusQueued)
	}
	j.Status = JobStatusQueued
	return nil
}

// Start moves a QUEUED job to RUNNING and stamps started_at. RUNNING is
// entered exactly once.
func (j *Job) Start(now time.Time) error {
	if j.Status != JobStatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusRunning)
	}
	j.Status = JobStatusRunning
	j.StartedAt = &now
	return nil
}

// RecordCase appends one case outcome and advances the processed counter,
// keeping len(Results) == ProcessedCases at every observation point.
func (j *Job) RecordCase(result CaseResult) error {
	if j.Status != JobStatusRunning {
		return fmt.Errorf("cannot record case on %s job %s", j.Status, j.ID)
	}
	if j.ProcessedCases >= j.TotalCases {
		return fmt.Errorf("job %s already processed all %d cases", j.ID, j.TotalCases)
	}
	j.Results = append(j.Results, result)
	j.ProcessedCases = len(j.Results)
	return nil
}

// Complete moves a RUNNING job to COMPLETED with its aggregate scores.
func (j *Job) Complete(scores ScoreSummary, now time.Time) error {
	if j.Status != JobStatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	j.Scores = &scores
	j.TotalScore = scores.OverallScore
	j.FinishedAt = &now
	return nil
}

// Fail moves a non-terminal job to FAILED with a human-readable cause.
func (j *Job) Fail(message string, now time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = &message
	j.FinishedAt = &now
	return nil
}
