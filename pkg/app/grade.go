package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jh125486/rubricscore/pkg/autotest"
	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/client"
	"github.com/jh125486/rubricscore/pkg/composer"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// EditArgs are the edits applied to a submission before it is submitted.
//
//nolint:lll // Long struct tags
type EditArgs struct {
	Select     []string `help:"Select an item on a normal row (row=item); selecting it again clears the row" name:"select"     short:"s"`
	Multiplier []string `help:"Set a continuous row's percentage (row=0..100); empty clears the row"           name:"multiplier" short:"m"`
	Yes        bool     `help:"Submit without asking"                                                          name:"yes"        short:"y"`
	ReadOnly   bool     `help:"Show the result without editing it"                                             name:"read-only"`
}

func (e EditArgs) session(def *rubrics.Definition, src composer.Source, svc *cli.Service) *client.Session {
	return &client.Session{
		Definition:  def,
		Source:      src,
		CanEdit:     !e.ReadOnly,
		Selects:     e.Select,
		Multipliers: e.Multiplier,
		Confirm:     !e.Yes,
		Writer:      svc.Stdout,
		Reader:      svc.Stdin,
	}
}

// GradeCmd grades a submission held by a rubric server.
type GradeCmd struct {
	cli.ServerArgs `embed:""`
	EditArgs       `embed:""`

	Assignment   string        `arg:"" help:"Assignment ID"`
	Submission   string        `arg:"" help:"Submission ID"`
	Wait         time.Duration `help:"Wait up to this long for a running auto-test to finish" name:"wait"`
	PollInterval time.Duration `default:"5s" help:"How often to check a running auto-test" name:"poll-interval"`
}

// Run fetches the rubric and auto-test state, applies the edits and submits.
func (cmd *GradeCmd) Run(ctx cli.Context, svc *cli.Service) error {
	logger := contextlog.From(ctx).With(
		slog.String("assignment_id", cmd.Assignment),
		slog.String("submission_id", cmd.Submission),
	)
	c := svc.RubricClient(cmd.ServerArgs, cmd.Assignment)

	def, err := c.FetchRubric(ctx)
	if err != nil {
		return err
	}
	cfg, run, err := c.FetchAutoTest(ctx, cmd.Submission)
	if err != nil {
		return err
	}
	if cfg != nil && cmd.Wait > 0 && (run == nil || run.State != rubrics.RunFinished) {
		run = cmd.waitForAutoTest(ctx, c, run)
	}

	s := cmd.session(def, c, svc)
	s.AutoTest, s.AutoResult = cfg, run
	_, err = client.Grade(contextlog.With(ctx, logger), s, cmd.Submission)
	if errors.Is(err, client.ErrNotSubmitted) {
		logger.InfoContext(ctx, "Result not submitted")
		return nil
	}
	return err
}

// waitForAutoTest polls until the run finishes or Wait elapses and returns
// the latest run seen.
func (cmd *GradeCmd) waitForAutoTest(ctx context.Context, c *client.Client, run *rubrics.AutoTestResult) *rubrics.AutoTestResult {
	logger := contextlog.From(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, cmd.Wait)
	defer cancel()

	p := autotest.Poller{
		Interval: cmd.PollInterval,
		Fetch: func(ctx context.Context) (*rubrics.AutoTestResult, error) {
			_, res, err := c.FetchAutoTest(ctx, cmd.Submission)
			return res, err
		},
	}
	err := p.Run(waitCtx, func(res *rubrics.AutoTestResult) {
		run = res
		logger.InfoContext(ctx, "Auto-test update", slog.String("state", string(res.State)))
	})
	if err != nil {
		logger.WarnContext(ctx, "Stopped waiting for auto-test", slog.Any("error", err))
	}
	return run
}
