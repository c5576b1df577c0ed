package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NinoDS/jssat/internal/store"
)

// ExploreOptions holds flags for the explore command.
type ExploreOptions struct {
	*RootOptions
	Entry  string
	Args   []string
	Blocks bool
}

// ExploreOutput is the JSON payload of the explore command.
type ExploreOutput struct {
	Entry           string                 `json:"entry"`
	Args            []string               `json:"args"`
	Outcome         string                 `json:"outcome"`
	Steps           int                    `json:"steps"`
	Specializations []store.Specialization `json:"specializations"`
}

// NewExploreCommand creates the explore command.
func NewExploreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExploreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explore <program>",
		Short: "List the specializations discovered from the entry",
		Long: `Run the symbolic execution engine on a program description without
assembling it, and list every (function, signature) pair in discovery order
with its outcome.

Examples:
  jssat explore prog.cue
  jssat explore prog.yaml --entry sum --arg number --join widen --blocks`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(opts, args[0], cmd)
		},
	}

	addEntryFlags(cmd, &opts.Entry, &opts.Args)
	cmd.Flags().BoolVar(&opts.Blocks, "blocks", false, "show per-block entry types and exits")

	return cmd
}

func runExplore(opts *ExploreOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	if opts.Entry == "" && len(opts.Args) > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("--arg requires --entry"))
	}

	c, err := compileProgram(opts.RootOptions, compileRequest{
		Path:        path,
		Entry:       opts.Entry,
		Args:        opts.Args,
		ExploreOnly: true,
	}, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	if c.Err != nil {
		return outputCompileFailure(formatter, c.Run, c.Err)
	}

	run := c.Run
	if opts.Format == "json" {
		specs := run.Specializations
		if specs == nil {
			specs = []store.Specialization{}
		}
		return formatter.Respond(CLIResponse{
			Status: "ok",
			Data: ExploreOutput{
				Entry:           run.Entry,
				Args:            run.Args,
				Outcome:         run.Outcome,
				Steps:           run.Steps,
				Specializations: specs,
			},
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Explored %s: %d specialization(s) in %d step(s)\n\n",
		run.Entry, len(run.Specializations), run.Steps)
	writeSpecializations(w, run.Specializations, opts.Blocks)
	return nil
}

// writeSpecializations prints one line per specialization and, with
// blocks, one indented line per explored block.
func writeSpecializations(w io.Writer, specs []store.Specialization, blocks bool) {
	for _, sp := range specs {
		name := sp.Function
		if sp.AssembledName != "" {
			name += " as " + sp.AssembledName
		}
		fmt.Fprintf(w, "  [%d] %s %s -> %s", sp.Seq, name, sp.Signature, sp.Outcome)
		if sp.State != "complete" {
			fmt.Fprintf(w, " (%s)", sp.State)
		}
		if sp.Iterations > 1 {
			fmt.Fprintf(w, " after %d iterations", sp.Iterations)
		}
		fmt.Fprintln(w)

		if !blocks {
			continue
		}
		for _, b := range sp.Blocks {
			fmt.Fprintf(w, "      %s%s %s, %d visit(s)\n", b.Block, b.Params, b.Exit, b.Visits)
		}
	}
}
