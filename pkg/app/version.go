package app

import (
	"github.com/alecthomas/kong"

	"github.com/jh125486/rubricscore/pkg/cli"
)

// VersionCmd prints the version and build.
type VersionCmd struct{}

func (cmd *VersionCmd) Run(kctx *kong.Context, version cli.Version, buildID cli.BuildID) error {
	cli.PrintVersion(kctx.Stdout, kctx.Model.Name, version, buildID)
	return nil
}
