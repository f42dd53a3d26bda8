package app

import (
	"log/slog"

	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/client"
	"github.com/jh125486/rubricscore/pkg/contextlog"
)

// PublishCmd uploads a grading directory's rubric and auto-test config.
type PublishCmd struct {
	cli.ServerArgs `embed:""`
	cli.DirArgs    `embed:""`
}

// Run publishes the rubric first so the auto-test config can be checked
// against it.
func (cmd *PublishCmd) Run(ctx cli.Context, svc *cli.Service) error {
	src := client.NewDirSource(cmd.Dir)
	def, err := src.LoadRubric()
	if err != nil {
		return err
	}

	c := svc.RubricClient(cmd.ServerArgs, def.AssignmentID)
	if err := c.PutRubric(ctx, def); err != nil {
		return err
	}

	cfg, _, err := src.LoadAutoTest("")
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	if cfg.AssignmentID == "" {
		cfg.AssignmentID = def.AssignmentID
	}
	if err := c.PutAutoTestConfig(ctx, cfg); err != nil {
		return err
	}
	contextlog.From(ctx).InfoContext(ctx, "Uploaded auto-test config",
		slog.String("assignment_id", cfg.AssignmentID),
		slog.Any("rows", cfg.Rows),
	)
	return nil
}
