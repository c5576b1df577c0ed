package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NinoDS/jssat/internal/backend"
	"github.com/NinoDS/jssat/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Entry  string
	Args   []string
	Lower  bool
	Output string
}

// CompileOutput is the JSON payload of a successful compile.
type CompileOutput struct {
	Entry           string   `json:"entry"`
	Args            []string `json:"args"`
	Outcome         string   `json:"outcome"`
	Specializations int      `json:"specializations"`
	Steps           int      `json:"steps"`
	Program         string   `json:"program"`
	Lowered         bool     `json:"lowered,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Specialize and assemble a program",
		Long: `Explore the entry function of a program description (.cue, .yaml,
.yml or .json) and print the monomorphized program: one function per
discovered argument signature.

With --lower the assembled program is further lowered into the backend
form. With --db the run is recorded, whether it succeeds or not.

Exit codes:
  0 - Compiled
  1 - Compilation failed (join conflict, divergence, budget, ...)
  2 - Command error (unreadable program, unknown entry, ...)

Examples:
  jssat compile prog.cue
  jssat compile prog.yaml --entry lt10 --arg "int 3"
  jssat compile prog.cue --join widen --lower -o prog.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	addEntryFlags(cmd, &opts.Entry, &opts.Args)
	cmd.Flags().BoolVar(&opts.Lower, "lower", false, "lower the assembled program into the backend form")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the program text to a file")

	return cmd
}

// addEntryFlags registers the flags selecting the function to explore.
func addEntryFlags(cmd *cobra.Command, entry *string, args *[]string) {
	cmd.Flags().StringVar(entry, "entry", "", "function to explore (default: the description's entry)")
	cmd.Flags().StringArrayVar(args, "arg", nil, `argument type, repeatable (e.g. --arg "int 3")`)
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	if opts.Entry == "" && len(opts.Args) > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("--arg requires --entry"))
	}

	c, err := compileProgram(opts.RootOptions, compileRequest{Path: path, Entry: opts.Entry, Args: opts.Args}, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}

	text := ""
	if c.Err == nil {
		text = c.Assembled.String()
		if opts.Lower {
			lowered, lerr := backend.Lower(c.Assembled, backend.WithLogger(logger))
			if lerr != nil {
				c.Err = lerr
				c.Run = store.RecordFailure(c.Meta, c.Module.Program, lerr)
			} else {
				text = lowered.String()
			}
		}
	}

	if opts.DB != "" {
		if err := recordRun(cmd.Context(), opts.DB, c.Run); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err)
		}
		formatter.VerboseLog("Recorded run %s in %s", c.Run.ID, opts.DB)
	}

	if c.Err != nil {
		return outputCompileFailure(formatter, c.Run, c.Err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text), 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("writing file: %w", err))
		}
	}

	if opts.Format == "json" {
		return formatter.Respond(CLIResponse{
			Status: "ok",
			RunID:  c.Run.ID,
			Data: CompileOutput{
				Entry:           c.Run.Entry,
				Args:            c.Run.Args,
				Outcome:         c.Run.Outcome,
				Specializations: len(c.Run.Specializations),
				Steps:           c.Run.Steps,
				Program:         text,
				Lowered:         opts.Lower,
			},
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d specialization(s), outcome %s\n",
		c.Run.Entry, len(c.Run.Specializations), c.Run.Outcome)
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote program to %s\n", opts.Output)
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, text)
	return nil
}

// outputCompileFailure reports a failed run. Compilation failures exit
// with ExitFailure; the program itself was readable.
func outputCompileFailure(formatter *OutputFormatter, run *store.Run, err error) error {
	code := run.ErrorCode
	if formatter.Format == "json" {
		_ = formatter.Respond(CLIResponse{
			Status: "error",
			RunID:  run.ID,
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
		return WrapExitError(ExitFailure, code, err)
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintf(formatter.Writer, "  %s: %v\n", code, err)
	return WrapExitError(ExitFailure, code, err)
}
