package app

import (
	"errors"
	"log/slog"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/client"
	"github.com/jh125486/rubricscore/pkg/contextlog"
)

// ScoreCmd grades a submission against a local grading directory.
type ScoreCmd struct {
	cli.DirArgs `embed:""`
	EditArgs    `embed:""`

	Submission string `arg:""                                                        help:"Submission ID" optional:""`
	Repo       string `help:"Use the HEAD commit of this git checkout as the submission ID" name:"repo" type:"existingdir"`
}

// submissionID resolves the submission from the argument or the checkout.
func (cmd *ScoreCmd) submissionID() (string, error) {
	switch {
	case cmd.Submission != "":
		return cmd.Submission, nil
	case cmd.Repo != "":
		return client.SubmissionFromGit(osfs.New(cmd.Repo))
	default:
		return "", errors.New("a submission ID or --repo is required")
	}
}

// Run loads the directory's rubric and auto-test, applies the edits and
// writes the result under the directory's results folder.
func (cmd *ScoreCmd) Run(ctx cli.Context, svc *cli.Service) error {
	submissionID, err := cmd.submissionID()
	if err != nil {
		return err
	}
	src := client.NewDirSource(cmd.Dir)
	def, err := src.LoadRubric()
	if err != nil {
		return err
	}
	cfg, run, err := src.LoadAutoTest(submissionID)
	if err != nil {
		return err
	}

	s := cmd.session(def, src, svc)
	s.AutoTest, s.AutoResult = cfg, run
	_, err = client.Grade(ctx, s, submissionID)
	if errors.Is(err, client.ErrNotSubmitted) {
		contextlog.From(ctx).InfoContext(ctx, "Result not saved", slog.String("submission_id", submissionID))
		return nil
	}
	return err
}
