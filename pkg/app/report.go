package app

import (
	"log/slog"

	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// ReportCmd reports the progress or outcome of an automated test run.
//
//nolint:lll // Long struct tags
type ReportCmd struct {
	cli.ServerArgs `embed:""`

	Assignment string             `arg:""          help:"Assignment ID"`
	Submission string             `arg:""          help:"Submission ID"`
	State      string             `default:"finished" enum:"not_started,running,finished" help:"Run state" name:"state"`
	Score      map[string]float64 `help:"Percentage earned on an auto-test row (row=0..100)" name:"score"`
}

// Run sends the run to the server.
func (cmd *ReportCmd) Run(ctx cli.Context, svc *cli.Service) error {
	res := &rubrics.AutoTestResult{
		SubmissionID: cmd.Submission,
		State:        rubrics.RunState(cmd.State),
		Percentages:  cmd.Score,
	}
	if err := svc.RubricClient(cmd.ServerArgs, cmd.Assignment).PutAutoTestResult(ctx, res); err != nil {
		return err
	}
	contextlog.From(ctx).InfoContext(ctx, "Reported auto-test run",
		slog.String("submission_id", res.SubmissionID),
		slog.String("state", string(res.State)),
	)
	return nil
}
