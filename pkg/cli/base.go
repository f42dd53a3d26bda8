package cli

import (
	"github.com/alecthomas/kong"

	"github.com/jh125486/rubricscore/pkg/contextlog"
)

// BaseCLI defines the core fields for all CLIs using our framework.
type BaseCLI struct {
	Version   kong.VersionFlag `help:"Show version and exit" name:"version"`
	LogLevel  string           `default:"info" enum:"debug,info,warn,error" env:"LOG_LEVEL"  help:"Log level"  name:"log-level"`
	LogFormat string           `default:"text" enum:"text,json"             env:"LOG_FORMAT" help:"Log format" name:"log-format"`
}

// AfterApply installs the configured logger and rebinds the command context
// so every Run method receives it.
func (b *BaseCLI) AfterApply(kctx *kong.Context, ctx Context) error {
	kctx.Bind(Context{contextlog.New(ctx, b.LogLevel, contextlog.Format(b.LogFormat))})
	return nil
}
