package cli

import (
	"github.com/jh125486/rubricscore/pkg/app"
	"github.com/jh125486/rubricscore/pkg/cli"
)

// CLI defines the command-line interface structure for rubricscore.
type CLI struct {
	cli.BaseCLI `embed:""`

	Serve      app.ServeCmd   `cmd:"" help:"Run the rubric server"`
	Grade      app.GradeCmd   `cmd:"" help:"Grade a submission on a rubric server"`
	Score      app.ScoreCmd   `cmd:"" help:"Grade a submission against a local grading directory"`
	Publish    app.PublishCmd `cmd:"" help:"Upload a grading directory's rubric and auto-test config"`
	Report     app.ReportCmd  `cmd:"" help:"Report an automated test run"`
	List       app.ListCmd    `cmd:"" help:"List an assignment's scored submissions"`
	VersionCmd app.VersionCmd `cmd:"" help:"Show version and build" name:"version"`
}
