package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jh125486/rubricscore/pkg/rubrics"
)

const (
	// DefaultPageSize is the default number of results per page when not specified
	DefaultPageSize = 20
	// MaxPageSize is the maximum allowed results per page
	MaxPageSize = 100
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ListResultsParams holds pagination parameters for ListResultsPaginated
type ListResultsParams struct {
	Page         int    // 1-indexed page number
	PageSize     int    // Number of results per page
	AssignmentID string // Optional: filter by assignment
}

// Validate returns a normalized copy with defaults applied and bounds enforced.
func (p ListResultsParams) Validate() ListResultsParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	default:
		// nop
	}
	return p
}

// CalculatePaginationBounds computes start and end indices for pagination.
// A page past the end yields an empty range, matching an SQL OFFSET.
func (p ListResultsParams) CalculatePaginationBounds(totalCount int) (startIdx, endIdx int) {
	startIdx = min(p.Offset(), totalCount)
	endIdx = min(startIdx+p.PageSize, totalCount)
	return startIdx, endIdx
}

// TotalPages is the number of pages needed for totalCount results, at least 1.
func (p ListResultsParams) TotalPages(totalCount int) int {
	p = p.Validate()
	return max((totalCount+p.PageSize-1)/p.PageSize, 1)
}

func (p ListResultsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Storage defines the interface for persistent storage of rubrics, rubric
// results and automated test runs
type Storage interface {
	SaveRubric(ctx context.Context, def *rubrics.Definition) error
	LoadRubric(ctx context.Context, assignmentID string) (*rubrics.Definition, error)

	SaveResult(ctx context.Context, result *rubrics.Result) error
	LoadResult(ctx context.Context, submissionID string) (*rubrics.Result, error)
	ListResultsPaginated(ctx context.Context, params ListResultsParams) (map[string]*rubrics.Result, int, error)

	SaveAutoTestConfig(ctx context.Context, cfg *rubrics.AutoTestConfig) error
	LoadAutoTestConfig(ctx context.Context, assignmentID string) (*rubrics.AutoTestConfig, error)
	SaveAutoTestResult(ctx context.Context, result *rubrics.AutoTestResult) error
	LoadAutoTestResult(ctx context.Context, submissionID string) (*rubrics.AutoTestResult, error)

	Close() error
}

func checkRubric(def *rubrics.Definition) error {
	if def == nil {
		return errors.New("rubric cannot be nil")
	}
	if def.AssignmentID == "" {
		return errors.New("rubric assignment ID cannot be empty")
	}
	return nil
}

func checkResult(result *rubrics.Result) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	if result.SubmissionID == "" {
		return errors.New("result submission ID cannot be empty")
	}
	return nil
}

func checkAutoTestConfig(cfg *rubrics.AutoTestConfig) error {
	if cfg == nil {
		return errors.New("auto-test config cannot be nil")
	}
	if cfg.AssignmentID == "" {
		return errors.New("auto-test config assignment ID cannot be empty")
	}
	return nil
}

func checkAutoTestResult(result *rubrics.AutoTestResult) error {
	if result == nil {
		return errors.New("auto-test result cannot be nil")
	}
	if result.SubmissionID == "" {
		return errors.New("auto-test result submission ID cannot be empty")
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return &v, nil
}
