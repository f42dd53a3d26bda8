// Package autotest follows an automated test run until it finishes.
package autotest

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// DefaultInterval is the poll interval used when Poller.Interval is zero.
const DefaultInterval = 5 * time.Second

// Poller fetches the auto-test result of one submission on an interval.
type Poller struct {
	Interval time.Duration
	// Fetch returns the latest result; a nil result means no run is known yet.
	Fetch func(ctx context.Context) (*rubrics.AutoTestResult, error)
}

// Run fetches right away and then on every tick, calling onUpdate whenever the
// run state or the percentages change. It returns nil once the run is
// finished, or the context error when ctx ends first.
func (p Poller) Run(ctx context.Context, onUpdate func(*rubrics.AutoTestResult)) error {
	if p.Fetch == nil {
		return errors.New("autotest: poller has no fetch function")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *rubrics.AutoTestResult
	for {
		res, err := p.Fetch(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			contextlog.From(ctx).WarnContext(ctx, "Failed to fetch auto-test result", slog.Any("error", err))
		case res != nil && changed(last, res):
			last = res
			contextlog.From(ctx).DebugContext(ctx, "Auto-test result changed",
				slog.String("submission_id", res.SubmissionID),
				slog.String("state", string(res.State)),
			)
			onUpdate(res)
		}
		if last != nil && last.State == rubrics.RunFinished {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func changed(prev, next *rubrics.AutoTestResult) bool {
	if prev == nil {
		return true
	}
	return prev.State != next.State || !maps.Equal(prev.Percentages, next.Percentages)
}
