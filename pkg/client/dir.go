package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jh125486/rubricscore/pkg/composer"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// Files of a grading directory.
const (
	RubricFile   = "rubric.yaml"
	AutoTestFile = "autotest.yaml"
	ResultsDir   = "results"
)

// WorkDir is a validated grading directory path
type WorkDir string

// Validate implements Kong's Validatable interface for WorkDir validation
func (w WorkDir) Validate() error {
	path := string(w)
	if path == "" {
		return fmt.Errorf("work directory not specified")
	}

	info, err := os.Stat(path)
	if err != nil {
		return &DirectoryError{Err: err}
	}
	if !info.IsDir() {
		return fmt.Errorf("work directory %q is not a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return &DirectoryError{Err: err}
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		return &DirectoryError{Err: err}
	}

	return nil
}

// String returns the string representation of WorkDir
func (w WorkDir) String() string {
	return string(w)
}

// DirectoryError represents an error related to directory access
type DirectoryError struct {
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%v\n%s", e.Err, e.permissionHelp())
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

func (e *DirectoryError) permissionHelp() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS help: System Settings → Privacy & Security → Full Disk Access\nOr try: chmod 755 /path/to/directory"
	case "windows":
		return "Windows help: Right-click folder → Properties → Security → Edit permissions\nOr run as Administrator"
	case "linux":
		return "Linux help: chmod 755 /path/to/directory\nOr check file ownership with: ls -la"
	default:
		return "Check directory permissions and ownership"
	}
}

// autoTestFile is the layout of AutoTestFile.
type autoTestFile struct {
	Config  *rubrics.AutoTestConfig   `yaml:"config"`
	Results []*rubrics.AutoTestResult `yaml:"results,omitempty"`
}

// DirSource grades offline against a directory holding RubricFile, an
// optional AutoTestFile and one YAML result per submission under ResultsDir.
type DirSource struct {
	Dir WorkDir

	mu sync.Mutex
}

var _ composer.Source = (*DirSource)(nil)

// NewDirSource returns a DirSource for dir.
func NewDirSource(dir WorkDir) *DirSource {
	return &DirSource{Dir: dir}
}

// LoadRubric reads and validates the directory's rubric.
func (d *DirSource) LoadRubric() (*rubrics.Definition, error) {
	var def rubrics.Definition
	if err := readYAML(filepath.Join(d.Dir.String(), RubricFile), &def); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadAutoTest reads the automated test and the run recorded for
// submissionID. Both are nil when the directory has no AutoTestFile. Every
// recorded run must be valid.
func (d *DirSource) LoadAutoTest(submissionID string) (*rubrics.AutoTestConfig, *rubrics.AutoTestResult, error) {
	path := filepath.Join(d.Dir.String(), AutoTestFile)
	var f autoTestFile
	err := readYAML(path, &f)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var run *rubrics.AutoTestResult
	for i, res := range f.Results {
		if res == nil {
			continue
		}
		if err := res.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: results[%d]: %w", path, i, err)
		}
		if run == nil && res.SubmissionID == submissionID {
			run = res
		}
	}
	return f.Config, run, nil
}

// FetchResult reads the stored result of submissionID, empty when unscored.
func (d *DirSource) FetchResult(ctx context.Context, submissionID string) (rubrics.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := rubrics.NewResult("", submissionID)
	err := readYAML(d.resultPath(submissionID), &res)
	if errors.Is(err, fs.ErrNotExist) {
		contextlog.From(ctx).DebugContext(ctx, "No stored result", slog.String("submission_id", submissionID))
		return rubrics.NewResult("", submissionID), nil
	}
	if err != nil {
		return rubrics.Result{}, err
	}
	if res.Selected == nil {
		res.Selected = make(map[string]rubrics.Selection)
	}
	return res, nil
}

// SubmitResult replaces the stored result of res.SubmissionID.
func (d *DirSource) SubmitResult(ctx context.Context, res rubrics.Result) (rubrics.Result, error) {
	if res.SubmissionID == "" {
		return rubrics.Result{}, errors.New("submission ID is required")
	}
	res = res.Clone()
	res.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(&res)
	if err != nil {
		return rubrics.Result{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.resultPath(res.SubmissionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rubrics.Result{}, &DirectoryError{Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return rubrics.Result{}, fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rubrics.Result{}, fmt.Errorf("failed to replace result: %w", err)
	}

	contextlog.From(ctx).InfoContext(ctx, "Saved rubric result",
		slog.String("submission_id", res.SubmissionID),
		slog.String("path", path),
	)
	return res, nil
}

func (d *DirSource) resultPath(submissionID string) string {
	return filepath.Join(d.Dir.String(), ResultsDir, filepath.Base(submissionID)+".yaml")
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
