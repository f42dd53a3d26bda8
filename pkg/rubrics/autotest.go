package rubrics

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// RunState is the progress of an automated test run.
type RunState string

const (
	RunNotStarted RunState = "not_started"
	RunRunning    RunState = "running"
	RunFinished   RunState = "finished"
)

type (
	// AutoTestConfig is the automated test of an assignment and the rows it scores.
	AutoTestConfig struct {
		ID           string   `json:"id"            yaml:"id"`
		AssignmentID string   `json:"assignment_id" yaml:"assignment_id"`
		Rows         []string `json:"rows"          yaml:"rows"`
	}

	// AutoTestResult is the outcome of the automated test for one submission.
	// Percentages are on a 0 to 100 scale.
	AutoTestResult struct {
		SubmissionID string             `json:"submission_id" yaml:"submission_id"`
		State        RunState           `json:"state"         yaml:"state"`
		Percentages  map[string]float64 `json:"percentages"   yaml:"percentages"`
	}

	// Overlay supplies auto-test scores for the rows an automated test drives.
	// Either field may be nil.
	Overlay struct {
		Config *AutoTestConfig
		Result *AutoTestResult
	}
)

// Drives reports whether the config scores rowID.
func (c *AutoTestConfig) Drives(rowID string) bool {
	return c != nil && slices.Contains(c.Rows, rowID)
}

// Clone returns a deep copy of c, nil for nil.
func (c *AutoTestConfig) Clone() *AutoTestConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Rows = slices.Clone(c.Rows)
	return &out
}

// ErrInvalidAutoTestResult wraps every auto-test result validation failure.
var ErrInvalidAutoTestResult = errors.New("invalid auto-test result")

// Validate checks that r names a submission, has a known run state and only
// carries percentages within [0, 100].
func (r *AutoTestResult) Validate() error {
	if r.SubmissionID == "" {
		return fmt.Errorf("%w: submission_id is required", ErrInvalidAutoTestResult)
	}
	switch r.State {
	case RunNotStarted, RunRunning, RunFinished:
	default:
		return fmt.Errorf("%w: unknown run state %q", ErrInvalidAutoTestResult, r.State)
	}
	for row, pct := range r.Percentages {
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return fmt.Errorf("%w: row %s: percentage %v out of range", ErrInvalidAutoTestResult, row, pct)
		}
	}
	return nil
}

// Clone returns a deep copy of r, nil for nil.
func (r *AutoTestResult) Clone() *AutoTestResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Percentages = maps.Clone(r.Percentages)
	return &out
}

// RunState returns the state of the run, not_started when nothing is known.
func (o Overlay) RunState() RunState {
	if o.Result == nil || o.Result.State == "" {
		return RunNotStarted
	}
	return o.Result.State
}

// PercentageFor returns the auto-test percentage for rowID, or nil when there
// is no result, the row is not driven by the test, or the run has not started.
func (o Overlay) PercentageFor(rowID string) *float64 {
	if o.Result == nil || !o.Config.Drives(rowID) || o.RunState() == RunNotStarted {
		return nil
	}
	pct, ok := o.Result.Percentages[rowID]
	if !ok {
		return nil
	}
	return Float(pct)
}

// Apply returns res with every auto-test locked row replaced by the overlay's
// value. Rows without an auto-test percentage lose their selection.
func (o Overlay) Apply(def *Definition, res Result) Result {
	out := res.Clone()
	for i := range def.Rows {
		row := &def.Rows[i]
		if row.Lock != LockAutoTest {
			continue
		}
		pct := o.PercentageFor(row.ID)
		if pct == nil {
			delete(out.Selected, row.ID)
			continue
		}
		sel, ok := row.autoTestSelection(*pct)
		if !ok {
			delete(out.Selected, row.ID)
			continue
		}
		out.Selected[row.ID] = sel
	}
	return out
}

func (r *Row) autoTestSelection(pct float64) (Selection, bool) {
	switch r.Kind {
	case RowContinuous:
		return Selection{ItemID: r.Items[0].ID, Multiplier: Float(pct / 100)}, true
	case RowNormal:
		// highest item reachable with the achieved share of the row's span;
		// the span starts at 0 unless the row carries penalty items
		floor := 0.0
		for _, it := range r.Items {
			floor = min(floor, it.Points)
		}
		reach := floor + ClampMultiplier(pct/100)*(r.MaxPoints()-floor)
		var (
			best  Item
			found bool
		)
		for _, it := range r.Items {
			if it.Points <= reach && (!found || it.Points > best.Points) {
				best, found = it, true
			}
		}
		return Selection{ItemID: best.ID}, found
	default:
		return Selection{}, false
	}
}
