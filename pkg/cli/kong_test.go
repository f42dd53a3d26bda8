package cli_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jh125486/rubricscore/pkg/cli"
	"github.com/jh125486/rubricscore/pkg/contextlog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// recordCmd captures what Kong injects into Run.
type recordCmd struct {
	ctx     context.Context
	buildID cli.BuildID
	version cli.Version
}

func (r *recordCmd) Run(ctx cli.Context, buildID cli.BuildID, version cli.Version) error {
	r.ctx, r.buildID, r.version = ctx.Context, buildID, version
	return nil
}

func TestNewKongContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cli  any
		args []string
	}{
		{
			name: "creates_context_with_name",
			cli: &struct {
				Help bool `help:"Show help"`
			}{},
			args: []string{},
		},
		{
			name: "empty_struct",
			cli:  &struct{}{},
		},
		{
			name: "base_cli_flags",
			cli: &struct {
				cli.BaseCLI `embed:""`
			}{},
			args: []string{"--log-level", "warn", "--log-format", "json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kctx := cli.NewKongContext(t.Context(), "test-app", "v1.0.0", "abc123", "2026-01-01", tt.cli, tt.args, kong.Exit(func(int) {}))

			require.NotNil(t, kctx, "Kong context should be created")
			assert.NotNil(t, kctx.Model, "Model should be set")
			assert.Equal(t, "test-app", kctx.Model.Name)
		})
	}
}

func TestNewKongContext_Bindings(t *testing.T) {
	t.Parallel()

	var grammar struct {
		Record recordCmd `cmd:"" help:"Record bindings"`
	}
	ctx := context.WithValue(t.Context(), contextKey("k"), "v")

	kctx := cli.NewKongContext(ctx, "rubricscore", "v2.0.0", "deadbeef", "2026-02-03", &grammar, []string{"record"}, kong.Exit(func(int) {}))
	require.NoError(t, kctx.Run())

	assert.Equal(t, "v", grammar.Record.ctx.Value(contextKey("k")))
	assert.Equal(t, cli.BuildID("deadbeef (2026-02-03)"), grammar.Record.buildID)
	assert.Equal(t, cli.Version("v2.0.0"), grammar.Record.version)
}

func TestBaseCLI_InstallsLogger(t *testing.T) {
	// Not parallel: installing a logger replaces the slog default.
	var grammar struct {
		cli.BaseCLI `embed:""`

		Record recordCmd `cmd:"" help:"Record bindings"`
	}

	kctx := cli.NewKongContext(t.Context(), "rubricscore", "v1", "c", "d", &grammar, []string{"--log-level", "debug", "record"}, kong.Exit(func(int) {}))
	require.NoError(t, kctx.Run())

	require.NotNil(t, grammar.Record.ctx)
	logger := contextlog.From(grammar.Record.ctx)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestNewKongContext_ErrorPaths(t *testing.T) {
	t.Parallel()

	t.Run("kong_new_errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			cli       any
			wantPanic bool
		}{
			{name: "invalid_cli_type_causes_panic", cli: "not a struct pointer", wantPanic: true},
			{name: "nil_cli_causes_panic", cli: nil, wantPanic: true},
			{name: "valid_cli_no_panic", cli: &struct{}{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				build := func() *kong.Context {
					return cli.NewKongContext(t.Context(), "test", "v", "c", "d", tt.cli, []string{}, kong.Exit(func(int) {}))
				}
				if tt.wantPanic {
					assert.Panics(t, func() { build() })
					return
				}
				assert.NotPanics(t, func() { assert.NotNil(t, build()) })
			})
		}
	})

	t.Run("parse_errors", func(t *testing.T) {
		t.Parallel()

		type cliWithRequired struct {
			Required string `help:"Required argument" required:""`
		}

		tests := []struct {
			name      string
			cli       any
			args      []string
			wantPanic bool
		}{
			{name: "missing_required_arg", cli: &cliWithRequired{}, args: []string{}, wantPanic: true},
			{name: "unknown_flag", cli: &struct{}{}, args: []string{"--unknown-flag"}, wantPanic: true},
			{name: "bad_enum", cli: &struct {
				cli.BaseCLI `embed:""`
			}{}, args: []string{"--log-format", "xml"}, wantPanic: true},
			{name: "valid_args_no_panic", cli: &cliWithRequired{}, args: []string{"--required", "value"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				build := func() *kong.Context {
					return cli.NewKongContext(t.Context(), "test", "v", "c", "d", tt.cli, tt.args, kong.Exit(func(int) {}))
				}
				if tt.wantPanic {
					assert.Panics(t, func() { build() })
					return
				}
				assert.NotPanics(t, func() { assert.NotNil(t, build()) })
			})
		}
	})
}

func TestContext_Wrapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ctx      context.Context
		validate func(*testing.T, cli.Context)
	}{
		{
			name: "wraps_background_context",
			ctx:  context.Background(),
			validate: func(t *testing.T, wrapped cli.Context) {
				assert.NotNil(t, wrapped.Context)
			},
		},
		{
			name: "preserves_context_values",
			ctx:  context.WithValue(context.Background(), contextKey("key"), "value"),
			validate: func(t *testing.T, wrapped cli.Context) {
				assert.Equal(t, "value", wrapped.Value(contextKey("key")))
			},
		},
		{
			name: "preserves_cancellation",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			validate: func(t *testing.T, wrapped cli.Context) {
				assert.Error(t, wrapped.Err())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, cli.Context{Context: tt.ctx})
		})
	}
}
