package cli

import (
	"github.com/jh125486/rubricscore/pkg/client"
)

// ServerArgs contains arguments shared by commands that talk to a rubric server.
//
//nolint:lll // Long struct tags
type ServerArgs struct {
	ServerURL string `default:"http://localhost:8080" env:"RUBRICSCORE_URL"   help:"URL of the rubric server"               name:"server-url"`
	Token     string `env:"RUBRICSCORE_TOKEN"         help:"Bearer token for the rubric server" name:"token"  required:""`
}

// DirArgs contains arguments shared by commands that read a grading directory.
type DirArgs struct {
	Dir client.WorkDir `default:"." help:"Path to the grading directory (must exist and be accessible)" name:"dir" required:""`
}

// Validate checks the grading directory is usable.
func (a DirArgs) Validate() error {
	return a.Dir.Validate()
}
