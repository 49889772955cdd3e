package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
)

// ObjectPutter is the part of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies the recent event log to S3-compatible object storage as
// zstd-compressed JSON lines.
type Archiver struct {
	store  Store
	client ObjectPutter
	bucket string
	prefix string
	limit  int
	logger *zap.Logger
	now    func() time.Time
}

// NewS3Client builds an S3 client from the archive configuration. Static
// credentials are used when set, otherwise the default chain.
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// NewArchiver creates an archiver over store.
func NewArchiver(store Store, client ObjectPutter, cfg config.ArchiveConfig, logger *zap.Logger) *Archiver {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 1000
	}
	return &Archiver{
		store:  store,
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		limit:  limit,
		logger: logger.Named("archive"),
		now:    time.Now,
	}
}

// Archive uploads one snapshot of the log and returns its key. Nothing is
// uploaded when the log is empty.
func (a *Archiver) Archive(ctx context.Context) (string, error) {
	events, err := a.store.Recent(ctx, a.limit)
	if err != nil {
		return "", fmt.Errorf("read events: %w", err)
	}
	if len(events) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := writeCompressed(&buf, events); err != nil {
		return "", err
	}

	key := fmt.Sprintf("%sevents-%s.jsonl.zst", a.prefix, a.now().UTC().Format("20060102T150405Z"))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("zstd"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	a.logger.Info("event log archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("events", len(events)))
	return key, nil
}

// Run is the body of the periodic archive task.
func (a *Archiver) Run(ctx context.Context) error {
	_, err := a.Archive(ctx)
	return err
}

// writeCompressed writes events oldest first.
func writeCompressed(w io.Writer, events []FailoverEvent) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}

	je := json.NewEncoder(enc)
	for i := len(events) - 1; i >= 0; i-- {
		if err := je.Encode(events[i]); err != nil {
			_ = enc.Close()
			return fmt.Errorf("encode event: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush encoder: %w", err)
	}
	return nil
}
