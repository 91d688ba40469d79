package questionctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"rageval/src/core/evaluation"
)

// BenchmarkQuestion is one labeled row of the benchmark pool.
type BenchmarkQuestion struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Bucket    string    `gorm:"not null;index" json:"bucket"`
	Question  string    `gorm:"not null" json:"question"`
	Answer    string    `gorm:"not null" json:"answer"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BenchmarkQuestion) TableName() string {
	return "benchmark_questions"
}

type QuestionService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewQuestionService(db *gorm.DB) (*QuestionService, error) {
	node, err := snowflake.NewNode(3) // Node number 3 for benchmark questions
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}
	if err := db.AutoMigrate(&BenchmarkQuestion{}); err != nil {
		return nil, fmt.Errorf("failed to migrate benchmark_questions: %v", err)
	}

	return &QuestionService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *QuestionService) Create(ctx context.Context, bucket, question, answer string) (*BenchmarkQuestion, error) {
	row := &BenchmarkQuestion{
		ID:       s.snowflake.Generate().Int64(),
		Bucket:   bucket,
		Question: question,
		Answer:   answer,
	}

	result := s.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create benchmark question: %v", result.Error)
	}
	return row, nil
}

// Sample returns up to count random rows from the bucket, without
// replacement. An empty bucket yields an empty slice, not an error.
func (s *QuestionService) Sample(ctx context.Context, bucket string, count int) ([]evaluation.QAPair, error) {
	var rows []BenchmarkQuestion
	result := s.db.WithContext(ctx).
		Where("bucket = ?", bucket).
		Order("random()").
		Limit(count).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to sample benchmark questions: %v", result.Error)
	}

	pairs := make([]evaluation.QAPair, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, evaluation.QAPair{Question: row.Question, Answer: row.Answer})
	}
	return pairs, nil
}

func (s *QuestionService) CountByBucket(ctx context.Context, bucket string) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&BenchmarkQuestion{}).Where("bucket = ?", bucket).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count benchmark questions: %v", result.Error)
	}
	return count, nil
}

var _ evaluation.QuestionPool = (*QuestionService)(nil)
