package utils

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var s3Client *s3.Client

func InitS3() {
	s3Region := os.Getenv("S3_REGION")
	if s3Region == "" {
		s3Region = os.Getenv("AWS_REGION") // fallback
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(s3Region))
	if err != nil {
		log.Fatalf("Unable to load AWS config for S3: %v", err)
	}

	s3Client = s3.NewFromConfig(cfg)
}

// S3PhotoStore keeps submitted photos in S3 and hands back an opaque key the
// completion row references for later audit.
type S3PhotoStore struct {
	bucket string
}

func NewS3PhotoStore() *S3PhotoStore {
	if s3Client == nil {
		InitS3()
	}
	return &S3PhotoStore{bucket: os.Getenv("S3_BUCKET")}
}

func (p *S3PhotoStore) Save(ctx context.Context, childID, activityID uint, jpegData []byte) (string, error) {
	key := fmt.Sprintf("submissions/%d/%d/%s.jpg", childID, activityID, uuid.NewString())

	_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jpegData),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo to S3: %w", err)
	}
	return key, nil
}
