package minioctrl

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rageval/src/core/evaluation"
)

const (
	ReportsBucket = "eval-reports"
)

type MinioService struct {
	client *minio.Client
}

func NewMinioService(endpoint, accessKeyID, secretAccessKey string, useSSL bool) (*MinioService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %v", err)
	}

	return &MinioService{
		client: client,
	}, nil
}

func (s *MinioService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return nil
}

// ArchiveReport stores the final job document as JSON under the reports
// bucket, keyed by job id.
func (s *MinioService) ArchiveReport(ctx context.Context, jobID string, report []byte) error {
	if err := s.EnsureBucketExists(ctx, ReportsBucket); err != nil {
		return err
	}

	objectName := fmt.Sprintf("%s.json", jobID)
	reader := bytes.NewReader(report)
	_, err := s.client.PutObject(ctx, ReportsBucket, objectName, reader, int64(len(report)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put report object: %v", err)
	}

	return nil
}

func (s *MinioService) GetReport(ctx context.Context, jobID string) ([]byte, error) {
	objectName := fmt.Sprintf("%s.json", jobID)
	obj, err := s.client.GetObject(ctx, ReportsBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get report object: %v", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read report data: %v", err)
	}

	return data, nil
}

var _ evaluation.ReportArchiver = (*MinioService)(nil)
