// Package composer owns the uncommitted rubric edits of the submission being
// graded and derives the effective result from them, the server result and
// the automated test overlay.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// DefaultDebounce is how long multiplier input must settle before it is applied.
const DefaultDebounce = 30 * time.Millisecond

// ErrNoSubmission is returned by Submit before any submission was loaded.
var ErrNoSubmission = errors.New("no submission loaded")

// Source fetches and persists rubric results.
type Source interface {
	FetchResult(ctx context.Context, submissionID string) (rubrics.Result, error)
	SubmitResult(ctx context.Context, res rubrics.Result) (rubrics.Result, error)
}

// Option configures a Composer.
type Option func(*Composer)

// WithCanEdit sets whether the viewer may edit unlocked rows.
func WithCanEdit(canEdit bool) Option {
	return func(c *Composer) { c.canEdit = canEdit }
}

// WithAutoTest sets the automated test that drives auto-test locked rows.
func WithAutoTest(cfg *rubrics.AutoTestConfig) Option {
	return func(c *Composer) { c.autoCfg = cfg.Clone() }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Composer) { c.wait = d }
}

// WithLogger sets the logger used by calls that carry no context.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// Composer is the single writer of local rubric edits. All edits go through
// Toggle and SetMultiplier; every change is announced to OnChange listeners
// with the new effective result.
type Composer struct {
	src    Source
	def    *rubrics.Definition
	wait   time.Duration
	logger *slog.Logger

	mu           sync.Mutex
	canEdit      bool
	autoCfg      *rubrics.AutoTestConfig
	autoRes      *rubrics.AutoTestResult
	submissionID string
	loadGen      uint64
	server       rubrics.Result
	edits        rubrics.Edits
	debouncers   map[string]*debouncer
	listeners    []func(rubrics.Result)
}

// New returns a Composer scoring against def.
func New(def *rubrics.Definition, src Source, opts ...Option) *Composer {
	c := &Composer{
		src:        src,
		def:        def,
		wait:       DefaultDebounce,
		logger:     slog.Default(),
		server:     rubrics.NewResult(def.AssignmentID, ""),
		edits:      rubrics.Edits{},
		debouncers: make(map[string]*debouncer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Definition returns the rubric the composer scores against.
func (c *Composer) Definition() *rubrics.Definition {
	return c.def
}

// OnChange registers fn to receive every new effective result.
func (c *Composer) OnChange(fn func(rubrics.Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SubmissionID returns the submission currently being graded.
func (c *Composer) SubmissionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissionID
}

// Load switches to submissionID, discarding local edits before the fetch is
// issued. A response that arrives after a later Load started is dropped,
// even when that later Load was for the same submission.
func (c *Composer) Load(ctx context.Context, submissionID string) error {
	c.mu.Lock()
	c.loadGen++
	gen := c.loadGen
	c.submissionID = submissionID
	c.server = rubrics.NewResult(c.def.AssignmentID, submissionID)
	c.resetLocked()
	c.mu.Unlock()
	c.notify()

	res, err := c.src.FetchResult(ctx, submissionID)

	c.mu.Lock()
	if gen != c.loadGen || c.submissionID != submissionID {
		current := c.submissionID
		c.mu.Unlock()
		contextlog.From(ctx).DebugContext(ctx, "Dropping stale rubric result",
			slog.String("submission_id", submissionID),
			slog.String("current_submission_id", current),
		)
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to fetch rubric result for %s: %w", submissionID, err)
	}
	c.server = normalize(res, c.def.AssignmentID, submissionID)
	c.mu.Unlock()

	contextlog.From(ctx).DebugContext(ctx, "Loaded rubric result",
		slog.String("submission_id", submissionID),
		slog.Int("selected", len(res.Selected)),
	)
	c.notify()
	return nil
}

// Reset discards every local edit.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Composer) resetLocked() {
	c.edits = rubrics.Edits{}
	for id, d := range c.debouncers {
		d.Cancel()
		delete(c.debouncers, id)
	}
}

// SetAutoTestResult replaces the automated test result of the current submission.
func (c *Composer) SetAutoTestResult(res *rubrics.AutoTestResult) {
	c.mu.Lock()
	c.autoRes = res.Clone()
	c.mu.Unlock()
	c.notify()
}

// Toggle selects itemID on a normal row, or deselects it if already selected.
// Edits to rows the viewer may not edit are ignored.
func (c *Composer) Toggle(rowID, itemID string) error {
	c.mu.Lock()
	row, err := c.rowLocked(rowID, rubrics.RowNormal)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.policyLocked().Editable(row) {
		c.mu.Unlock()
		c.ignored(rowID)
		return nil
	}

	next, err := rubrics.ToggleItem(c.def, rubrics.WithLocalEdits(c.server, c.edits), rowID, itemID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.edits[rowID] = rubrics.EditFor(next, rowID)
	c.mu.Unlock()

	c.notify()
	return nil
}

// SetMultiplier applies percentage input to a continuous row. The first call
// applies immediately; calls that follow within the debounce window collapse
// into the last one. Malformed input keeps the previous value.
func (c *Composer) SetMultiplier(rowID, raw string) error {
	c.mu.Lock()
	row, err := c.rowLocked(rowID, rubrics.RowContinuous)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.policyLocked().Editable(row) {
		c.mu.Unlock()
		c.ignored(rowID)
		return nil
	}
	d, ok := c.debouncers[rowID]
	if !ok {
		d = newDebouncer(c.wait)
		c.debouncers[rowID] = d
	}
	submissionID := c.submissionID
	c.mu.Unlock()

	d.Do(func() { c.applyMultiplier(submissionID, rowID, raw) })
	return nil
}

func (c *Composer) applyMultiplier(submissionID, rowID, raw string) {
	c.mu.Lock()
	if c.submissionID != submissionID {
		c.mu.Unlock()
		return
	}
	row, err := c.rowLocked(rowID, rubrics.RowContinuous)
	if err != nil || !c.policyLocked().Editable(row) {
		c.mu.Unlock()
		return
	}
	next, changed, err := rubrics.SetMultiplier(c.def, rubrics.WithLocalEdits(c.server, c.edits), rowID, raw)
	if err != nil || !changed {
		c.mu.Unlock()
		return
	}
	c.edits[rowID] = rubrics.EditFor(next, rowID)
	c.mu.Unlock()

	c.notify()
}

// Submit sends the effective result. Pending multiplier input is applied
// first. An invalid result is rejected without contacting the source. On
// success the response becomes the server result and the submitted edits are
// dropped.
func (c *Composer) Submit(ctx context.Context) (rubrics.Result, error) {
	c.Flush()

	c.mu.Lock()
	submissionID := c.submissionID
	sent := c.edits.Clone()
	eff := c.effectiveLocked()
	c.mu.Unlock()

	if submissionID == "" {
		return rubrics.Result{}, ErrNoSubmission
	}
	if err := rubrics.ValidateForSubmit(c.def, eff); err != nil {
		return rubrics.Result{}, err
	}

	saved, err := c.src.SubmitResult(ctx, eff)
	if err != nil {
		return rubrics.Result{}, fmt.Errorf("failed to submit rubric result for %s: %w", submissionID, err)
	}

	c.mu.Lock()
	if c.submissionID != submissionID {
		c.mu.Unlock()
		contextlog.From(ctx).DebugContext(ctx, "Dropping stale submit response",
			slog.String("submission_id", submissionID),
		)
		return saved, nil
	}
	c.server = normalize(saved, c.def.AssignmentID, submissionID)
	for id, ed := range sent {
		if cur, ok := c.edits[id]; ok && cur.Equal(ed) {
			delete(c.edits, id)
		}
	}
	c.mu.Unlock()

	contextlog.From(ctx).InfoContext(ctx, "Submitted rubric result",
		slog.String("submission_id", submissionID),
		slog.Int("selected", len(eff.Selected)),
		slog.Float64("total_points", rubrics.TotalPoints(eff, c.def)),
	)
	c.notify()
	return saved, nil
}

// Flush applies pending multiplier input now.
func (c *Composer) Flush() {
	c.mu.Lock()
	ds := make([]*debouncer, 0, len(c.debouncers))
	for _, d := range c.debouncers {
		ds = append(ds, d)
	}
	c.mu.Unlock()

	for _, d := range ds {
		d.Flush()
	}
}

// Close drops pending multiplier input.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.debouncers {
		d.Cancel()
	}
}

// Effective returns the server result with local edits and the automated
// test overlay applied.
func (c *Composer) Effective() rubrics.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

func (c *Composer) effectiveLocked() rubrics.Result {
	return c.overlayLocked().Apply(c.def, rubrics.WithLocalEdits(c.server, c.edits))
}

// TotalPoints is the point total of the effective result.
func (c *Composer) TotalPoints() float64 {
	return rubrics.TotalPoints(c.Effective(), c.def)
}

// Edits returns a copy of the uncommitted edits.
func (c *Composer) Edits() rubrics.Edits {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edits.Clone()
}

// Policy returns the lock policy as of now.
func (c *Composer) Policy() rubrics.Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policyLocked()
}

// LockState classifies rowID; ok is false for unknown rows.
func (c *Composer) LockState(rowID string) (state rubrics.LockState, ok bool) {
	row, ok := c.def.Row(rowID)
	if !ok {
		return rubrics.StateUnlocked, false
	}
	return c.Policy().State(row), true
}

// LockMessage is the explanation shown for rowID, empty when it is editable.
func (c *Composer) LockMessage(rowID string) string {
	row, ok := c.def.Row(rowID)
	if !ok {
		return ""
	}
	return c.Policy().Message(row)
}

func (c *Composer) overlayLocked() rubrics.Overlay {
	return rubrics.Overlay{Config: c.autoCfg, Result: c.autoRes}
}

func (c *Composer) policyLocked() rubrics.Policy {
	return rubrics.Policy{CanEdit: c.canEdit, Overlay: c.overlayLocked()}
}

func (c *Composer) rowLocked(rowID string, kind rubrics.RowKind) (*rubrics.Row, error) {
	row, ok := c.def.Row(rowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", rubrics.ErrUnknownRow, rowID)
	}
	if row.Kind != kind {
		return nil, fmt.Errorf("%w: %s row %s", rubrics.ErrKindMismatch, row.Kind, rowID)
	}
	return row, nil
}

func (c *Composer) ignored(rowID string) {
	c.logger.Debug("Ignoring edit to locked row", slog.String("row_id", rowID))
}

func (c *Composer) notify() {
	c.mu.Lock()
	eff := c.effectiveLocked()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(eff.Clone())
	}
}

func normalize(res rubrics.Result, assignmentID, submissionID string) rubrics.Result {
	out := res.Clone()
	if out.SubmissionID == "" {
		out.SubmissionID = submissionID
	}
	if out.AssignmentID == "" {
		out.AssignmentID = assignmentID
	}
	return out
}
