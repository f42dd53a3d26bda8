package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jh125486/rubricscore/pkg/composer"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// ErrNotSubmitted is returned by Grade when the user declines to submit.
var ErrNotSubmitted = errors.New("result not submitted")

// Session describes one grading pass over a submission.
type Session struct {
	Definition *rubrics.Definition
	Source     composer.Source
	AutoTest   *rubrics.AutoTestConfig
	AutoResult *rubrics.AutoTestResult
	CanEdit    bool

	// Selects are "row=item" pairs toggled on normal rows.
	Selects []string
	// Multipliers are "row=percent" pairs set on continuous rows.
	Multipliers []string

	// Confirm asks before submitting.
	Confirm bool
	// Writer is where the rubric table is written. If nil, defaults to os.Stdout
	Writer io.Writer
	// Reader is where to read user input from. If nil, defaults to os.Stdin
	Reader io.Reader
}

// Grade loads submissionID, applies the session's edits, renders the
// effective result and submits it.
func Grade(ctx context.Context, s *Session, submissionID string) (rubrics.Result, error) {
	logger := contextlog.From(ctx).With(slog.String("submission_id", submissionID))

	c := composer.New(s.Definition, s.Source,
		composer.WithCanEdit(s.CanEdit),
		composer.WithAutoTest(s.AutoTest),
		composer.WithLogger(logger),
	)
	defer c.Close()

	if err := c.Load(ctx, submissionID); err != nil {
		return rubrics.Result{}, err
	}
	if s.AutoResult != nil {
		c.SetAutoTestResult(s.AutoResult)
	}

	for _, raw := range s.Selects {
		rowID, itemID, err := splitEdit(raw)
		if err != nil {
			return rubrics.Result{}, err
		}
		if err := c.Toggle(rowID, itemID); err != nil {
			return rubrics.Result{}, err
		}
	}
	for _, raw := range s.Multipliers {
		rowID, pct, err := splitEdit(raw)
		if err != nil {
			return rubrics.Result{}, err
		}
		if err := c.SetMultiplier(rowID, pct); err != nil {
			return rubrics.Result{}, err
		}
	}
	c.Flush()

	rubrics.Render(s.Writer, s.Definition, c.Effective(), c.Policy())

	if len(c.Edits()) == 0 {
		logger.InfoContext(ctx, "No changes to submit")
		return c.Effective(), nil
	}
	if s.Confirm && !PromptForSubmission(ctx, s.Writer, s.Reader) {
		return c.Effective(), ErrNotSubmitted
	}
	return c.Submit(ctx)
}

func splitEdit(raw string) (rowID, value string, err error) {
	rowID, value, ok := strings.Cut(raw, "=")
	rowID = strings.TrimSpace(rowID)
	if !ok || rowID == "" {
		return "", "", fmt.Errorf("invalid edit %q: expected row=value", raw)
	}
	return rowID, value, nil
}
