package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/alexeldeib/claude-taxmate/pkg/config"
)

// Archiver stores raw uploaded CSVs in R2 for audit and re-import.
type Archiver struct {
	client *s3.Client
	bucket string
}

func NewArchiver(cfg config.StorageConfig) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
		o.UsePathStyle = true
		o.Region = "auto"
	})

	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

// ArchiveCSV uploads the raw import under a per-user, collision-free key and
// returns the object key.
func (a *Archiver) ArchiveCSV(ctx context.Context, userID uint, filename string, data []byte) (string, error) {
	safeName := slug.Make(filename)
	objectKey := fmt.Sprintf("users/%d/imports/%d-%s-%s.csv", userID, time.Now().UnixNano(), uuid.New().String(), safeName)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("could not upload CSV archive: %w", err)
	}

	return objectKey, nil
}
