package jobctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rageval/src/core/evaluation"
)

// jobRecord is the gorm mapping of an evaluation job. Results and scores are
// stored as jsonb documents.
type jobRecord struct {
	ID             string          `gorm:"primaryKey"`
	SubmitterID    string          `gorm:"not null;index"`
	EndpointURL    string          `gorm:"not null"`
	Status         string          `gorm:"not null;index"`
	TopK           int             `gorm:"not null"`
	TotalCases     int             `gorm:"not null"`
	ProcessedCases int             `gorm:"not null"`
	TotalScore     float64         `gorm:"not null"`
	Results        json.RawMessage `gorm:"type:jsonb"`
	Scores         json.RawMessage `gorm:"type:jsonb"`
	ErrorMessage   *string
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

func (jobRecord) TableName() string {
	return "evaluation_jobs"
}

type JobService struct {
	db *gorm.DB
}

func NewJobService(db *gorm.DB) (*JobService, error) {
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate evaluation_jobs: %v", err)
	}
	return &JobService{db: db}, nil
}

func (s *JobService) Create(ctx context.Context, job *evaluation.Job) error {
	record, err := toRecord(job)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to create job: %v", result.Error)
	}
	return nil
}

func (s *JobService) Get(ctx context.Context, id string) (*evaluation.Job, error) {
	var record jobRecord
	result := s.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %v", result.Error)
	}
	return fromRecord(&record)
}

func (s *JobService) Save(ctx context.Context, job *evaluation.Job) error {
	record, err := toRecord(job)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Save(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save job: %v", result.Error)
	}
	return nil
}

func toRecord(job *evaluation.Job) (*jobRecord, error) {
	results, err := json.Marshal(job.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job results: %v", err)
	}
	var scores json.RawMessage
	if job.Scores != nil {
		scores, err = json.Marshal(job.Scores)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job scores: %v", err)
		}
	}
	return &jobRecord{
		ID:             job.ID,
		SubmitterID:    job.SubmitterID,
		EndpointURL:    job.EndpointURL,
		Status:         string(job.Status),
		TopK:           job.TopK,
		TotalCases:     job.TotalCases,
		ProcessedCases: job.ProcessedCases,
		TotalScore:     job.TotalScore,
		Results:        results,
		Scores:         scores,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
	}, nil
}

func fromRecord(record *jobRecord) (*evaluation.Job, error) {
	job := &evaluation.Job{
		ID:             record.ID,
		SubmitterID:    record.SubmitterID,
		EndpointURL:    record.EndpointURL,
		Status:         evaluation.JobStatus(record.Status),
		TopK:           record.TopK,
		TotalCases:     record.TotalCases,
		ProcessedCases: record.ProcessedCases,
		TotalScore:     record.TotalScore,
		ErrorMessage:   record.ErrorMessage,
		CreatedAt:      record.CreatedAt,
		StartedAt:      record.StartedAt,
		FinishedAt:     record.FinishedAt,
	}
	if len(record.Results) > 0 {
		if err := json.Unmarshal(record.Results, &job.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job results: %v", err)
		}
	}
	if len(record.Scores) > 0 {
		var scores evaluation.ScoreSummary
		if err := json.Unmarshal(record.Scores, &scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job scores: %v", err)
		}
		job.Scores = &scores
	}
	return job, nil
}

var _ evaluation.JobRepository = (*JobService)(nil)
