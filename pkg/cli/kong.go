package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
)

type (
	// Context wraps context.Context to work around reflection issues in Kong's Bind().
	// Use this as the parameter type for Kong command Run methods.
	Context struct {
		context.Context
	}
	// BuildID identifies the build: commit and build date.
	BuildID string
	// Version is the release version of the binary.
	Version string
)

// NewKongContext creates and configures a Kong parser context for a CLI application.
// It binds the provided context, build ID and version for use in command execution.
// Pass nil for args to use os.Args (typical for production), or provide custom args for testing.
func NewKongContext(ctx context.Context, name, version, commit, date string, cli any, args []string, opts ...kong.Option) *kong.Context {
	buildID := BuildID(fmt.Sprintf("%s (%s)", commit, date))
	opts = append([]kong.Option{
		kong.Name(name),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s %s %s", name, version, buildID)},
		kong.Bind(Context{ctx}, buildID, Version(version)),
	}, opts...)

	parser, err := kong.New(cli, opts...)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		panic(err)
	}
	return kctx
}
