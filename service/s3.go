package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config locates the cover bucket. Static keys are optional; without them
// the default AWS credential chain applies.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Service keeps book cover images in a single bucket.
type S3Service struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func NewS3Service(ctx context.Context, c S3Config) (*S3Service, error) {
	if c.Bucket == "" {
		return nil, errors.New("AWS_S3_BUCKET is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		static := credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(static))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Service{client: client, presign: s3.NewPresignClient(client), bucket: c.Bucket}, nil
}

// objectKey names a new cover object. Known image types decide the
// extension; otherwise the original filename does.
func objectKey(prefix, originalFilename, contentType string) string {
	ext, ok := coverExtensions[contentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(originalFilename))
	}
	return prefix + uuid.NewString() + ext
}

// Upload writes body to a fresh key under prefix and returns that key.
func (s *S3Service) Upload(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error) {
	key := objectKey(prefix, originalFilename, contentType)
	in := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3Service) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// PresignedGetURL signs a GET for key that stays valid for expiry. Covers are
// served inline so browsers render them instead of downloading.
func (s *S3Service) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	in := &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String("inline"),
	}
	req, err := s.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
