package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// DefaultCaseDelay spaces out participant-endpoint calls to stay polite with
// third-party rate limits.
const DefaultCaseDelay = 100 * time.Millisecond

// Orchestrator drives one evaluation job end to end: dataset normalization,
// the per-case query loop, the batch metrics-engine call, per-case metric
// mapping and the terminal transition. Every job mutation is persisted
// immediately so pollers always observe a monotonically advancing view.
type Orchestrator struct {
	jobs      JobRepository
	backend   BackendClient
	engine    MetricsEngine
	archiver  ReportArchiver
	weights   Weights
	caseDelay time.Duration
	logger    logr.Logger
}

func NewOrchestrator(
	jobs JobRepository,
	backend BackendClient,
	engine MetricsEngine,
	archiver ReportArchiver,
	caseDelay time.Duration,
	logger logr.Logger,
) *Orchestrator {
	if caseDelay < 0 {
		caseDelay = DefaultCaseDelay
	}
	return &Orchestrator{
		jobs:      jobs,
		backend:   backend,
		engine:    engine,
		archiver:  archiver,
		weights:   DefaultWeights,
		caseDelay: caseDelay,
		logger:    logger,
	}
}

// Run executes the job with the given id against the endpoint. The returned
// error is the pipeline-fatal cause, already recorded on the job; the caller
// (queue handler) decides how to report it.
func (o *Orchestrator) Run(ctx context.Context, jobID, endpointURL string, dataset json.RawMessage, topK int) error {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != JobStatusQueued {
		// At-least-once delivery can replay a message for a job that already
		// ran. Terminal jobs are never re-driven.
		o.logger.Info("skipping job not in queued state", "job_id", jobID, "status", job.Status)
		return nil
	}

	pairs, err := NormalizeDataset(dataset)
	if err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to build dataset: %w", err))
	}
	if len(pairs) == 0 {
		return o.failJob(ctx, job, fmt.Errorf("dataset contains no usable question/answer pairs"))
	}

	job.TotalCases = len(pairs)
	if err := o.jobs.Save(ctx, job); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to persist job before run: %w", err))
	}

	if err := job.Start(time.Now().UTC()); err != nil {
		return o.failJob(ctx, job, err)
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to persist running state: %w", err))
	}

	o.logger.Info("querying participant endpoint", "job_id", job.ID,
		"cases", len(pairs), "top_k", topK)

	responses, err := o.queryAllCases(ctx, job, pairs, endpointURL, topK)
	if err != nil {
		return o.failJob(ctx, job, err)
	}

	input := buildEngineInput(pairs, responses)
	if len(input.Questions) == 0 {
		return o.failJob(ctx, job, fmt.Errorf("no valid responses from participant endpoint (%d cases failed)", len(pairs)))
	}
	o.logger.Info("running metrics engine", "job_id", job.ID,
		"valid_cases", len(input.Questions), "total_cases", len(pairs))

	engineResult, err := o.engine.Evaluate(ctx, input)
	if err != nil {
		return o.failJob(ctx, job, fmt.Errorf("metrics engine evaluation failed: %w", err))
	}

	applyCaseMetrics(job, engineResult.Rows)
	if err := o.jobs.Save(ctx, job); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to persist case metrics: %w", err))
	}

	scores := Summarize(engineResult.Scores, o.weights)
	if err := job.Complete(scores, time.Now().UTC()); err != nil {
		return o.failJob(ctx, job, err)
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to persist completed job %s: %w", job.ID, err)
	}

	o.archiveReport(ctx, job)
	o.logger.Info("evaluation complete", "job_id", job.ID,
		"valid_cases", len(input.Questions), "overall_score", scores.OverallScore)
	return nil
}

// queryAllCases runs the sequential per-case loop, recording and persisting a
// provisional result after every single call so progress survives a crash.
func (o *Orchestrator) queryAllCases(ctx context.Context, job *Job, pairs []QAPair, endpointURL string, topK int) ([]QueryResult, error) {
	responses := make([]QueryResult, 0, len(pairs))
	for i, pair := range pairs {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("job execution cancelled: %w", ctx.Err())
		}

		resp := o.backend.Query(ctx, endpointURL, pair.Question, topK)
		responses = append(responses, resp)

		result := CaseResult{Question: pair.Question, GroundTruth: pair.Answer}
		if resp.Err != nil {
			result.Error = resp.Err
		} else {
			result.PredictedAnswer = resp.Answer
		}
		if err := job.RecordCase(result); err != nil {
			return nil, err
		}
		if err := o.jobs.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to persist progress at case %d: %w", i+1, err)
		}

		o.logger.V(1).Info("case processed", "job_id", job.ID,
			"case", i+1, "total", len(pairs), "error", resp.Err != nil)

		if o.caseDelay > 0 && i < len(pairs)-1 {
			select {
			case <-time.After(o.caseDelay):
			case <-ctx.Done():
			}
		}
	}
	return responses, nil
}

// buildEngineInput filters to cases with no error and a non-empty answer,
// preserving original order.
func buildEngineInput(pairs []QAPair, responses []QueryResult) EngineInput {
	input := EngineInput{}
	for i, resp := range responses {
		if resp.Err != nil || resp.Answer == nil || *resp.Answer == "" {
			continue
		}
		contexts := resp.Contexts
		if contexts == nil {
			contexts = []string{}
		}
		input.Questions = append(input.Questions, pairs[i].Question)
		input.Answers = append(input.Answers, *resp.Answer)
		input.Contexts = append(input.Contexts, contexts)
		input.GroundTruths = append(input.GroundTruths, pairs[i].Answer)
	}
	return input
}

// applyCaseMetrics re-walks the results in original order; each successful
// case consumes the next engine row, errored cases keep zero metrics.
func applyCaseMetrics(job *Job, rows []map[string]float64) {
	rowIdx := 0
	for i := range job.Results {
		r := &job.Results[i]
		if r.Error != nil || r.PredictedAnswer == nil || *r.PredictedAnswer == "" {
			continue
		}
		if rowIdx < len(rows) {
			r.Metrics = breakdownFromRow(rows[rowIdx])
			rowIdx++
		}
	}
}

func (o *Orchestrator) failJob(ctx context.Context, job *Job, cause error) error {
	if err := job.Fail(cause.Error(), time.Now().UTC()); err != nil {
		o.logger.Error(err, "could not transition job to failed", "job_id", job.ID)
		return cause
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		o.logger.Error(err, "could not persist failed job", "job_id", job.ID)
	}
	return cause
}

func (o *Orchestrator) archiveReport(ctx context.Context, job *Job) {
	if o.archiver == nil {
		return
	}
	report, err := json.Marshal(job)
	if err != nil {
		o.logger.Error(err, "could not marshal job report", "job_id", job.ID)
		return
	}
	if err := o.archiver.ArchiveReport(ctx, job.ID, report); err != nil {
		o.logger.Error(err, "could not archive job report", "job_id", job.ID)
	}
}
