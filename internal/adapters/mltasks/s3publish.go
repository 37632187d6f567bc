package mltasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPartSize    = 16 * 1024 * 1024
	defaultConcurrency = 4
)

// Uploader is the subset of manager.Uploader the publisher needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config describes the destination bucket and connection.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PartSize        int64
	Concurrency     int
	RetryLimit      uint64
	RetryBase       time.Duration
}

// S3Publisher uploads a model directory to s3://<bucket>/<repo id>/.
type S3Publisher struct {
	cfg      S3Config
	uploader Uploader
	logger   *slog.Logger
}

// NewS3Client builds an S3 client from static credentials and an optional custom endpoint.
func NewS3Client(cfg S3Config) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
}

// NewS3Publisher constructs a publisher. A nil uploader gets a manager.Uploader on a
// client built from cfg.
func NewS3Publisher(cfg S3Config, uploader Uploader, logger *slog.Logger) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = defaultPartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if uploader == nil {
		partSize := cfg.PartSize
		uploader = manager.NewUploader(NewS3Client(cfg), func(u *manager.Uploader) {
			u.PartSize = partSize
		})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Publisher{cfg: cfg, uploader: uploader, logger: logger.With("component", "s3_publisher")}, nil
}

type uploadItem struct {
	path string
	key  string
	size int64
}

// Publish uploads every regular file below source and reports progress to out.
func (p *S3Publisher) Publish(ctx context.Context, out io.Writer, source, repoID string) (any, error) {
	items, err := p.collect(source, repoID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Uploading %d files from '%s' to s3://%s/%s/\n", len(items), source, p.cfg.Bucket, repoID)

	var (
		outMu sync.Mutex
		bytes atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, item := range items {
		g.Go(func() error {
			if err := p.uploadWithRetry(gctx, item); err != nil {
				return fmt.Errorf("upload %s: %w", item.key, err)
			}
			bytes.Add(item.size)
			outMu.Lock()
			fmt.Fprintf(out, "Uploaded %s (%d bytes)\n", item.key, item.size)
			outMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fmt.Fprintln(out, "Upload completed successfully")
	return map[string]any{
		"repo_id": repoID,
		"objects": len(items),
		"bytes":   bytes.Load(),
	}, nil
}

func (p *S3Publisher) collect(source, repoID string) ([]uploadItem, error) {
	var items []uploadItem
	err := filepath.WalkDir(source, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, full)
		if err != nil {
			return err
		}
		items = append(items, uploadItem{
			path: full,
			key:  path.Join(repoID, filepath.ToSlash(rel)),
			size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", source, err)
	}
	return items, nil
}

func (p *S3Publisher) uploadWithRetry(ctx context.Context, item uploadItem) error {
	backoff := retry.WithMaxRetries(p.cfg.RetryLimit, retry.NewFibonacci(p.cfg.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		f, err := os.Open(item.path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.cfg.Bucket),
			Key:    aws.String(item.key),
			Body:   f,
		})
		if err != nil {
			p.logger.WarnContext(ctx, "s3 upload attempt failed", "key", item.key, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
