package evaluation

import "context"

// QAPair is one benchmark question with its reference answer.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// JobRepository persists evaluation jobs. Save must be immediately durable:
// the repository is the only synchronization point between the running worker
// and status pollers.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Save(ctx context.Context, job *Job) error
}

// QuestionPool is the read-only benchmark question store. Sample returns up
// to count random rows from the named bucket, without replacement.
type QuestionPool interface {
	Sample(ctx context.Context, bucket string, count int) ([]QAPair, error)
}

// QueryResult is the outcome of one participant-endpoint call. Err is nil for
// a successful call; when set the call must be treated as failed regardless
// of any partial answer.
type QueryResult struct {
	Answer   *string
	Contexts []string
	Err      *string
}

// BackendClient sends one question to the participant endpoint under test.
type BackendClient interface {
	Query(ctx context.Context, endpoint, question string, topK int) QueryResult
}

// EngineInput is the parallel-array batch handed to the metrics engine.
type EngineInput struct {
	Questions    []string
	Answers      []string
	Contexts     [][]string
	GroundTruths []string
}

// EngineResult carries the engine's column means and per-sample rows, in the
// order of the input batch.
type EngineResult struct {
	Scores map[string]float64
	Rows   []map[string]float64
}

// MetricsEngine scores a whole batch at once. It rejects structurally
// invalid input (mismatched array lengths) with an error.
type MetricsEngine interface {
	Evaluate(ctx context.Context, input EngineInput) (*EngineResult, error)
}

// ReportArchiver stores the final job document after completion. Archive
// failures are advisory and never fail the job.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, jobID string, report []byte) error
}
