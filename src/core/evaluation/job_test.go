package evaluation_test

import (
	"testing"
	"time"

	"rageval/src/core/evaluation"
)

func TestJobLifecycle(t *testing.T) {
	j := evaluation.NewJob("team-1", "https://example.com/rag", 5)

	if j.Status != evaluation.JobStatusNew {
		t.Fatalf("new job status = %s, want %s", j.Status, evaluation.JobStatusNew)
	}
	if j.ID == "" {
		t.Fatal("new job has empty id")
	}

	if err := j.MarkQueued(); err != nil {
		t.Fatalf("MarkQueued() error = %v", err)
	}
	if err := j.Start(time.Now()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if j.StartedAt == nil {
		t.Fatal("Start() did not stamp started_at")
	}

	j.TotalCases = 1
	answer := "a"
	if err := j.RecordCase(evaluation.CaseResult{Question: "q", GroundTruth: "g", PredictedAnswer: &answer}); err != nil {
		t.Fatalf("RecordCase() error = %v", err)
	}
	if j.ProcessedCases != 1 || len(j.Results) != 1 {
		t.Fatalf("processed=%d results=%d, want 1/1", j.ProcessedCases, len(j.Results))
	}

	if err := j.Complete(evaluation.ScoreSummary{OverallScore: 0.5}, time.Now()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if j.Scores == nil || j.TotalScore != 0.5 || j.FinishedAt == nil {
		t.Fatal("Complete() did not set scores, total score and finished_at")
	}
}

func TestJobInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func() *evaluation.Job
		apply   func(*evaluation.Job) error
	}{
		{
			name:    "start before queued",
			prepare: func() *evaluation.Job { return evaluation.NewJob("t", "u", 5) },
			apply:   func(j *evaluation.Job) error { return j.Start(time.Now()) },
		},
		{
			name: "complete without running",
			prepare: func() *evaluation.Job {
				j := evaluation.NewJob("t", "u", 5)
				j.MarkQueued()
				return j
			},
			apply: func(j *evaluation.Job) error { return j.Complete(evaluation.ScoreSummary{}, time.Now()) },
		},
		{
			name: "fail after completed",
			prepare: func() *evaluation.Job {
				j := evaluation.NewJob("t", "u", 5)
				j.MarkQueued()
				j.Start(time.Now())
				j.Complete(evaluation.ScoreSummary{}, time.Now())
				return j
			},
			apply: func(j *evaluation.Job) error { return j.Fail("boom", time.Now()) },
		},
		{
			name: "queue twice",
			prepare: func() *evaluation.Job {
				j := evaluation.NewJob("t", "u", 5)
				j.MarkQueued()
				return j
			},
			apply: func(j *evaluation.Job) error { return j.MarkQueued() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := tt.prepare()
			before := j.Status
			if err := tt.apply(j); err == nil {
				t.Fatalf("transition from %s succeeded, want error", before)
			}
			if before.Terminal() && j.Status != before {
				t.Fatalf("terminal status regressed from %s to %s", before, j.Status)
			}
		})
	}
}

func TestJobFailSetsMessage(t *testing.T) {
	j := evaluation.NewJob("t", "u", 5)
	j.MarkQueued()
	j.Start(time.Now())

	if err := j.Fail("endpoint unreachable", time.Now()); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if j.Status != evaluation.JobStatusFailed {
		t.Fatalf("status = %s, want %s", j.Status, evaluation.JobStatusFailed)
	}
	if j.ErrorMessage == nil || *j.ErrorMessage != "endpoint unreachable" {
		t.Fatalf("error message = %v, want set", j.ErrorMessage)
	}
	if j.FinishedAt == nil {
		t.Fatal("Fail() did not stamp finished_at")
	}
	if j.Scores != nil {
		t.Fatal("failed job must not carry scores")
	}
}
