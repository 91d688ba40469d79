package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"rageval/src/core/evaluation"
)

const (
	// TopicEvaluationJobs is the durable queue topic carrying evaluation work.
	TopicEvaluationJobs = "evaluation_jobs"

	// DefaultJobTimeout bounds a single job execution; past it the run is
	// cancelled and the job ends up FAILED.
	DefaultJobTimeout = 30 * time.Minute
)

// EvaluationPayload is the queue message handed to a worker. The job record
// itself is already persisted; the payload carries everything needed to
// drive it without further coordination.
type EvaluationPayload struct {
	JobID       string          `json:"job_id"`
	SubmitterID string          `json:"submitter_id"`
	EndpointURL string          `json:"endpoint_url"`
	Dataset     json.RawMessage `json:"dataset"`
	TopK        int             `json:"top_k"`
}

// NewEvaluationPayload builds the queue message for a queued job and its
// sampled dataset.
func NewEvaluationPayload(j *evaluation.Job, pairs []evaluation.QAPair) (EvaluationPayload, error) {
	dataset, err := json.Marshal(pairs)
	if err != nil {
		return EvaluationPayload{}, fmt.Errorf("failed to marshal dataset: %w", err)
	}
	return EvaluationPayload{
		JobID:       j.ID,
		SubmitterID: j.SubmitterID,
		EndpointURL: j.EndpointURL,
		Dataset:     dataset,
		TopK:        j.TopK,
	}, nil
}

type Service struct {
	publisher  message.Publisher
	runner     *evaluation.Orchestrator
	logger     watermill.LoggerAdapter
	jobTimeout time.Duration
}

func NewService(
	publisher message.Publisher,
	runner *evaluation.Orchestrator,
	logger watermill.LoggerAdapter,
	jobTimeout time.Duration,
) *Service {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	return &Service{
		publisher:  publisher,
		runner:     runner,
		logger:     logger,
		jobTimeout: jobTimeout,
	}
}

// Enqueue publishes an evaluation job message to the queue.
func (s *Service) Enqueue(ctx context.Context, payload EvaluationPayload) error {
	msgPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(TopicEvaluationJobs, msg); err != nil {
		return fmt.Errorf("failed to publish evaluation message: %w", err)
	}

	s.logger.Info("Evaluation job enqueued", watermill.LogFields{
		"job_id": payload.JobID,
	})
	return nil
}

// ProcessMessage executes one evaluation job message from the queue. The
// orchestrator records any pipeline failure on the job record; the error is
// still returned so the queue keeps the failure metadata.
func (s *Service) ProcessMessage(msg *message.Message) error {
	var payload EvaluationPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal evaluation payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	s.logger.Info("Processing evaluation job", watermill.LogFields{
		"job_id":       payload.JobID,
		"submitter_id": payload.SubmitterID,
	})

	if err := s.runner.Run(ctx, payload.JobID, payload.EndpointURL, payload.Dataset, payload.TopK); err != nil {
		return fmt.Errorf("failed to process evaluation job %s: %w", payload.JobID, err)
	}
	return nil
}
