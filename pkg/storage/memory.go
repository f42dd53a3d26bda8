package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// MemoryStorage implements Storage in process memory. It is meant for local
// runs and tests; nothing survives a restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	defs        map[string]*rubrics.Definition
	results     map[string]*rubrics.Result
	autoConfigs map[string]*rubrics.AutoTestConfig
	autoResults map[string]*rubrics.AutoTestResult
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		defs:        make(map[string]*rubrics.Definition),
		results:     make(map[string]*rubrics.Result),
		autoConfigs: make(map[string]*rubrics.AutoTestConfig),
		autoResults: make(map[string]*rubrics.AutoTestResult),
	}
}

func (m *MemoryStorage) SaveRubric(_ context.Context, def *rubrics.Definition) error {
	if err := checkRubric(def); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.AssignmentID] = def.Clone()
	return nil
}

func (m *MemoryStorage) LoadRubric(_ context.Context, assignmentID string) (*rubrics.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.defs[assignmentID]
	if !ok {
		return nil, notFound("rubric", assignmentID)
	}
	return def.Clone(), nil
}

func (m *MemoryStorage) SaveResult(_ context.Context, result *rubrics.Result) error {
	if err := checkResult(result); err != nil {
		return err
	}
	cp := result.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.SubmissionID] = &cp
	return nil
}

func (m *MemoryStorage) LoadResult(_ context.Context, submissionID string) (*rubrics.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[submissionID]
	if !ok {
		return nil, notFound("result", submissionID)
	}
	cp := res.Clone()
	return &cp, nil
}

// ListResultsPaginated pages through results newest first.
func (m *MemoryStorage) ListResultsPaginated(_ context.Context, params ListResultsParams) (map[string]*rubrics.Result, int, error) {
	params = params.Validate()

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := slices.Collect(maps.Values(m.results))
	all = slices.DeleteFunc(all, func(r *rubrics.Result) bool {
		return params.AssignmentID != "" && r.AssignmentID != params.AssignmentID
	})
	slices.SortFunc(all, func(a, b *rubrics.Result) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SubmissionID, b.SubmissionID)
	})

	startIdx, endIdx := params.CalculatePaginationBounds(len(all))
	results := make(map[string]*rubrics.Result, endIdx-startIdx)
	for _, res := range all[startIdx:endIdx] {
		cp := res.Clone()
		results[res.SubmissionID] = &cp
	}
	return results, len(all), nil
}

func (m *MemoryStorage) SaveAutoTestConfig(_ context.Context, cfg *rubrics.AutoTestConfig) error {
	if err := checkAutoTestConfig(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoConfigs[cfg.AssignmentID] = cfg.Clone()
	return nil
}

func (m *MemoryStorage) LoadAutoTestConfig(_ context.Context, assignmentID string) (*rubrics.AutoTestConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.autoConfigs[assignmentID]
	if !ok {
		return nil, notFound("auto-test config", assignmentID)
	}
	return cfg.Clone(), nil
}

func (m *MemoryStorage) SaveAutoTestResult(_ context.Context, result *rubrics.AutoTestResult) error {
	if err := checkAutoTestResult(result); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoResults[result.SubmissionID] = result.Clone()
	return nil
}

func (m *MemoryStorage) LoadAutoTestResult(_ context.Context, submissionID string) (*rubrics.AutoTestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.autoResults[submissionID]
	if !ok {
		return nil, notFound("auto-test result", submissionID)
	}
	return res.Clone(), nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}
