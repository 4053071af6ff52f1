package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"avpackaging/internal/config"
	"avpackaging/internal/logging"
	"avpackaging/internal/services"
)

// deleteBatchSize is the DeleteObjects per-request limit.
const deleteBatchSize = 1000

type s3API interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloaderAPI interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3Store is a Store backed by Amazon S3 using multipart concurrent transfers.
type S3Store struct {
	api        s3API
	uploader   uploaderAPI
	downloader downloaderAPI
	logger     *slog.Logger
}

// AWSConfig builds the shared AWS configuration from cfg. Static credentials
// are used when configured; otherwise the default provider chain applies.
func AWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.Region),
	}
	if cfg.Storage.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, services.Wrap(services.ErrConfiguration, "", "load aws config", "", err)
	}
	return awsCfg, nil
}

// NewS3 constructs an S3Store.
func NewS3(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := AWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Storage.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.Storage.UsePathStyle
	})

	partSize, concurrency := cfg.StorageTransfer()
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
	})
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = partSize
		d.Concurrency = concurrency
	})
	return newS3Store(client, uploader, downloader, logger), nil
}

func newS3Store(api s3API, uploader uploaderAPI, downloader downloaderAPI, logger *slog.Logger) *S3Store {
	return &S3Store{
		api:        api,
		uploader:   uploader,
		downloader: downloader,
		logger:     logging.NewComponentLogger(logger, "s3"),
	}
}

// List returns every object under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, transferError("list objects", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	return objects, nil
}

// Download streams key into dest, removing dest on failure.
func (s *S3Store) Download(ctx context.Context, bucket, key, dest string) error {
	file, err := os.Create(dest)
	if err != nil {
		return transferError("create download target", bucket, key, err)
	}
	written, err := s.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return transferError("download object", bucket, key, err)
	}
	s.logger.Debug("object downloaded", logging.String("bucket", bucket), logging.String("key", key), logging.Int64("bytes", written))
	return nil
}

// Upload streams src to key with the given content type.
func (s *S3Store) Upload(ctx context.Context, bucket, key, src, contentType string) error {
	file, err := os.Open(src)
	if err != nil {
		return transferError("open upload source", bucket, key, err)
	}
	defer file.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return transferError("upload object", bucket, key, err)
	}
	s.logger.Debug("object uploaded", logging.String("bucket", bucket), logging.String("key", key), logging.String("content_type", contentType))
	return nil
}

// Delete removes keys in batches. Any per-key failure reported by S3 fails
// the call.
func (s *S3Store) Delete(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}
		out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return transferError("delete objects", bucket, keys[start], err)
		}
		if len(out.Errors) > 0 {
			failures := make([]error, 0, len(out.Errors))
			for _, e := range out.Errors {
				failures = append(failures, fmt.Errorf("%s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
			}
			return transferError("delete objects", bucket, aws.ToString(out.Errors[0].Key), errors.Join(failures...))
		}
	}
	return nil
}
