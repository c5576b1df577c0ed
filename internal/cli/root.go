package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/store"
	"github.com/NinoDS/jssat/internal/types"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // report database; empty disables recording

	MaxSteps int
	MaxDepth int
	Join     string // "fail" | "widen"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the jssat CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "jssat",
		Short: "jssat - type-specializing ahead-of-time compiler",
		Long: `jssat explores a program description under abstract argument types and
emits one monomorphized function per discovered signature.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := types.ParseJoinPolicy(opts.Join); err != nil {
				return err
			}
			if opts.MaxSteps <= 0 || opts.MaxDepth <= 0 {
				return fmt.Errorf("--max-steps and --max-depth must be positive")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database recording compilation runs")
	cmd.PersistentFlags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "exploration step budget")
	cmd.PersistentFlags().IntVar(&opts.MaxDepth, "max-depth", engine.DefaultMaxDepth, "nested specializations of one function before divergence")
	cmd.PersistentFlags().StringVar(&opts.Join, "join", "fail", "join policy for disagreeing paths (fail|widen)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewExploreCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// logger returns the diagnostic logger: a text handler on w, at Debug
// level with --verbose and Warn otherwise.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// engineOptions maps the global flags onto engine options and the options
// recorded with a run. Zero budgets fall back to the engine defaults, which
// keeps commands usable when they are built without the root command.
func (o *RootOptions) engineOptions(logger *slog.Logger) ([]engine.Option, store.Options, error) {
	policy, err := types.ParseJoinPolicy(o.Join)
	if err != nil {
		return nil, store.Options{}, err
	}
	maxSteps, maxDepth := o.MaxSteps, o.MaxDepth
	if maxSteps <= 0 {
		maxSteps = engine.DefaultMaxSteps
	}
	if maxDepth <= 0 {
		maxDepth = engine.DefaultMaxDepth
	}
	opts := []engine.Option{
		engine.WithMaxSteps(maxSteps),
		engine.WithMaxDepth(maxDepth),
		engine.WithJoinPolicy(policy),
		engine.WithLogger(logger),
	}
	return opts, store.Options{Policy: policy.String(), MaxSteps: maxSteps, MaxDepth: maxDepth}, nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // keeps JSON on stdout clean
		Verbose:   o.Verbose,
	}
}
