package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// R2Config holds R2/S3 storage configuration
type R2Config struct {
	// For production R2/Cloudflare
	Endpoint string
	Region   string
	Bucket   string

	// Credentials
	AccessKeyID     string
	SecretAccessKey string

	// Addressing style
	UsePathStyle bool
}

const (
	rubricPrefix         = "rubrics/"
	resultPrefix         = "results/"
	autoTestConfigPrefix = "autotest/configs/"
	autoTestResultPrefix = "autotest/results/"
	objectSuffix         = ".json"
)

func objectKey(prefix, id string) string {
	return prefix + id + objectSuffix
}

// R2Storage implements Storage using Cloudflare R2 (S3-compatible)
type R2Storage struct {
	maxConcurrentFetches int
	client               *s3.Client
	bucket               string
}

// This formula allows efficient concurrent object fetches without overwhelming the system,
// providing approximately 4 concurrent requests per available CPU core.
const maxConcurrentMultiplier = 4

// NewR2Storage creates a new R2 storage instance
func NewR2Storage(ctx context.Context, cfg *R2Config) (*R2Storage, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "rubricscore-storage"
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	region := cfg.Region
	if cfg.UsePathStyle {
		// LocalStack typically uses us-east-1
		region = "us-east-1"
	}

	addressing := "virtual-hosted"
	if cfg.UsePathStyle {
		addressing = "path-style"
	}
	contextlog.From(ctx).InfoContext(ctx, "Configuring object storage",
		slog.String("addressing", addressing),
		slog.String("endpoint", cfg.Endpoint),
		slog.String("region", region),
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	storage := &R2Storage{
		maxConcurrentFetches: maxConcurrentMultiplier * runtime.NumCPU(),
		client:               client,
		bucket:               cfg.Bucket,
	}

	if err := storage.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return storage, nil
}

func (r *R2Storage) SaveRubric(ctx context.Context, def *rubrics.Definition) error {
	if err := checkRubric(def); err != nil {
		return err
	}
	return r.put(ctx, "rubric", objectKey(rubricPrefix, def.AssignmentID), def)
}

func (r *R2Storage) LoadRubric(ctx context.Context, assignmentID string) (*rubrics.Definition, error) {
	data, err := r.get(ctx, "rubric", objectKey(rubricPrefix, assignmentID))
	if err != nil {
		return nil, err
	}
	return decode[rubrics.Definition](data)
}

// SaveResult saves a rubric result to storage
func (r *R2Storage) SaveResult(ctx context.Context, result *rubrics.Result) error {
	if err := checkResult(result); err != nil {
		return err
	}
	return r.put(ctx, "rubric result", objectKey(resultPrefix, result.SubmissionID), result)
}

// LoadResult loads a rubric result from storage
func (r *R2Storage) LoadResult(ctx context.Context, submissionID string) (*rubrics.Result, error) {
	data, err := r.get(ctx, "rubric result", objectKey(resultPrefix, submissionID))
	if err != nil {
		return nil, err
	}
	return decode[rubrics.Result](data)
}

func (r *R2Storage) SaveAutoTestConfig(ctx context.Context, cfg *rubrics.AutoTestConfig) error {
	if err := checkAutoTestConfig(cfg); err != nil {
		return err
	}
	return r.put(ctx, "auto-test config", objectKey(autoTestConfigPrefix, cfg.AssignmentID), cfg)
}

func (r *R2Storage) LoadAutoTestConfig(ctx context.Context, assignmentID string) (*rubrics.AutoTestConfig, error) {
	data, err := r.get(ctx, "auto-test config", objectKey(autoTestConfigPrefix, assignmentID))
	if err != nil {
		return nil, err
	}
	return decode[rubrics.AutoTestConfig](data)
}

func (r *R2Storage) SaveAutoTestResult(ctx context.Context, result *rubrics.AutoTestResult) error {
	if err := checkAutoTestResult(result); err != nil {
		return err
	}
	return r.put(ctx, "auto-test result", objectKey(autoTestResultPrefix, result.SubmissionID), result)
}

func (r *R2Storage) LoadAutoTestResult(ctx context.Context, submissionID string) (*rubrics.AutoTestResult, error) {
	data, err := r.get(ctx, "auto-test result", objectKey(autoTestResultPrefix, submissionID))
	if err != nil {
		return nil, err
	}
	return decode[rubrics.AutoTestResult](data)
}

func (r *R2Storage) put(ctx context.Context, kind, key string, v any) error {
	start := time.Now()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &r.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save %s to R2: %w", kind, err)
	}

	contextlog.From(ctx).InfoContext(ctx, "Saved "+kind,
		slog.String("key", key),
		slog.String("bucket", r.bucket),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (r *R2Storage) get(ctx context.Context, kind, key string) ([]byte, error) {
	start := time.Now()
	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, notFound(kind, key)
		}
		return nil, fmt.Errorf("failed to load %s from R2: %w", kind, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	contextlog.From(ctx).DebugContext(ctx, "Loaded "+kind,
		slog.String("key", key),
		slog.String("bucket", r.bucket),
		slog.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// collectResultIDs retrieves every stored submission ID, in key order.
func (r *R2Storage) collectResultIDs(ctx context.Context) ([]string, error) {
	var ids []string
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: &r.bucket,
		Prefix: aws.String(resultPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			id, ok := strings.CutPrefix(*obj.Key, resultPrefix)
			if !ok {
				continue
			}
			if id, ok = strings.CutSuffix(id, objectSuffix); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}

	return ids, nil
}

// ListResultsPaginated fetches a paginated list of results from storage.
// Without an assignment filter pages follow key order; with one, every result
// is loaded and pages run newest first.
func (r *R2Storage) ListResultsPaginated(ctx context.Context, params ListResultsParams) (
	results map[string]*rubrics.Result, totalCount int, err error) {
	start := time.Now()

	params = params.Validate()

	ids, err := r.collectResultIDs(ctx)
	if err != nil {
		return nil, 0, err
	}

	if params.AssignmentID != "" {
		all := r.loadResultsParallel(ctx, ids)
		ids = ids[:0]
		for id, res := range all {
			if res.AssignmentID == params.AssignmentID {
				ids = append(ids, id)
			}
		}
		slices.SortFunc(ids, func(a, b string) int {
			if c := all[b].UpdatedAt.Compare(all[a].UpdatedAt); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		})
		totalCount = len(ids)
		startIdx, endIdx := params.CalculatePaginationBounds(totalCount)
		results = make(map[string]*rubrics.Result, endIdx-startIdx)
		for _, id := range ids[startIdx:endIdx] {
			results[id] = all[id]
		}
	} else {
		totalCount = len(ids)
		startIdx, endIdx := params.CalculatePaginationBounds(totalCount)
		results = r.loadResultsParallel(ctx, ids[startIdx:endIdx])
	}

	contextlog.From(ctx).InfoContext(ctx, "Listed paginated rubric results",
		slog.Int("page", params.Page),
		slog.Int("page_size", params.PageSize),
		slog.String("assignment_id", params.AssignmentID),
		slog.Int("total_count", totalCount),
		slog.Int("returned", len(results)),
		slog.String("bucket", r.bucket),
		slog.Duration("duration", time.Since(start)),
	)

	return results, totalCount, nil
}

// loadResultsParallel fetches multiple results concurrently using errgroup
func (r *R2Storage) loadResultsParallel(ctx context.Context, ids []string) map[string]*rubrics.Result {
	results := make(map[string]*rubrics.Result, len(ids))
	var mu sync.Mutex

	wg, ctx := errgroup.WithContext(ctx)
	wg.SetLimit(r.maxConcurrentFetches)

	for _, id := range ids {
		wg.Go(func() error {
			result, err := r.LoadResult(ctx, id)
			if err != nil {
				contextlog.From(ctx).WarnContext(ctx, "Failed to load result",
					slog.String("submission_id", id),
					slog.Any("error", err),
				)
				return nil // Don't fail entire batch on single error
			}

			mu.Lock()
			results[id] = result
			mu.Unlock()

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		contextlog.From(ctx).ErrorContext(ctx, "Error loading results in parallel", slog.Any("error", err))
	}

	return results
}

// ensureBucketExists checks if the bucket exists and creates it if it doesn't
func (r *R2Storage) ensureBucketExists(ctx context.Context) error {
	// HeadBucket is not supported by every S3-compatible service
	_, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &r.bucket,
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		contextlog.From(ctx).InfoContext(ctx, "Bucket does not exist, attempting to create", slog.String("bucket", r.bucket))

		if _, createErr := r.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: &r.bucket,
		}); createErr != nil {
			return fmt.Errorf("failed to create bucket %s: %w", r.bucket, createErr)
		}

		contextlog.From(ctx).InfoContext(ctx, "Successfully created bucket", slog.String("bucket", r.bucket))
		return nil
	}

	contextlog.From(ctx).InfoContext(ctx, "Bucket already exists", slog.String("bucket", r.bucket))
	return nil
}

// Close closes the storage connection (no-op for R2/S3)
func (r *R2Storage) Close() error {
	return nil
}
