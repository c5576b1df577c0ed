package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NinoDS/jssat/internal/frontend"
	"github.com/NinoDS/jssat/internal/store"
)

// ReportOptions holds flags for the report commands.
type ReportOptions struct {
	*RootOptions
	Program string
	Entry   string
	Blocks  bool
}

// VerifyResult is the JSON payload of report verify.
type VerifyResult struct {
	RunID       string             `json:"run_id"`
	Reproduced  bool               `json:"reproduced"`
	Differences []store.Difference `json:"differences,omitempty"`
}

// NewReportCommand creates the report command and its subcommands.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect compilation runs recorded with --db",
		Long: `Inspect the compilation runs recorded in the database named by --db.

Examples:
  jssat report list --db runs.db
  jssat report show <run-id> --db runs.db --blocks
  jssat report latest prog.cue --db runs.db
  jssat report verify <run-id> --db runs.db`,
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List recorded runs, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Program, "program", "", "only runs of this program description")

	show := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one run with its specializations",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportShow(opts, args[0], cmd)
		},
	}
	show.Flags().BoolVar(&opts.Blocks, "blocks", false, "show per-block entry types and exits")

	latest := &cobra.Command{
		Use:           "latest <program>",
		Short:         "Show the most recent run of a program",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportLatest(opts, args[0], cmd)
		},
	}
	latest.Flags().StringVar(&opts.Entry, "entry", "", "entry function (default: the description's entry)")
	latest.Flags().BoolVar(&opts.Blocks, "blocks", false, "show per-block entry types and exits")

	verify := &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Recompile a recorded run and compare the results",
		Long: `Recompile the program of a recorded run with the same entry, arguments
and engine options, and compare the new result with the recorded one.

Exit codes:
  0 - Reproduced
  1 - The results differ
  2 - Command error (unknown run, unreadable program, ...)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportVerify(opts, args[0], cmd)
		},
	}

	del := &cobra.Command{
		Use:           "delete <run-id>",
		Short:         "Delete a recorded run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportDelete(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, show, latest, verify, del)
	return cmd
}

// openStore opens the --db database, which must be set.
func (o *ReportOptions) openStore() (*store.Store, error) {
	if o.DB == "" {
		return nil, fmt.Errorf("--db is required")
	}
	return store.Open(o.DB)
}

// storeFailure maps store errors to exit errors; unknown runs are command
// errors like any other.
func storeFailure(f *OutputFormatter, err error) error {
	code := ErrCodeStore
	if errors.Is(err, store.ErrNotFound) {
		code = ErrCodeNotFound
	}
	return f.Fail(ExitCommandError, code, err)
}

func runReportList(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return storeFailure(formatter, err)
	}
	defer st.Close()

	var runs []*store.Run
	if opts.Program != "" {
		mod, lerr := frontend.LoadFile(opts.Program)
		if lerr != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLoad, lerr)
		}
		runs, err = st.RunsForProgram(cmd.Context(), store.ProgramHash(mod.Program))
	} else {
		runs, err = st.ListRuns(cmd.Context())
	}
	if err != nil {
		return storeFailure(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", Data: runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%d %s %s %s%s: %s\n",
			r.Seq, r.ID, r.Status, r.Entry, argList(r.Args), runResult(r))
	}
	return nil
}

func runReportShow(opts *ReportOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return storeFailure(formatter, err)
	}
	defer st.Close()

	run, err := st.ReadRun(cmd.Context(), id)
	if err != nil {
		return storeFailure(formatter, err)
	}
	return outputRun(formatter, run, opts.Blocks)
}

func runReportLatest(opts *ReportOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	mod, err := frontend.LoadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	entry := opts.Entry
	if entry == "" {
		entry = mod.Entry
	}
	if entry == "" {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("%s names no entry function; pass --entry", path))
	}

	st, err := opts.openStore()
	if err != nil {
		return storeFailure(formatter, err)
	}
	defer st.Close()

	run, err := st.LatestRun(cmd.Context(), store.ProgramHash(mod.Program), entry)
	if err != nil {
		return storeFailure(formatter, err)
	}
	return outputRun(formatter, run, opts.Blocks)
}

func runReportVerify(opts *ReportOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	want, err := readRun(cmd.Context(), opts, id)
	if err != nil {
		return storeFailure(formatter, err)
	}

	// Recompile with the recorded settings, not the current flags.
	recorded := *opts.RootOptions
	recorded.MaxSteps = want.Options.MaxSteps
	recorded.MaxDepth = want.Options.MaxDepth
	recorded.Join = want.Options.Policy

	c, err := compileProgram(&recorded, compileRequest{
		Path:  want.Source,
		Entry: want.Entry,
		Args:  want.Args,
	}, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}

	diffs := store.Compare(want, c.Run)
	result := VerifyResult{RunID: want.ID, Reproduced: len(diffs) == 0, Differences: diffs}

	if opts.Format == "json" {
		if err := formatter.Respond(CLIResponse{Status: "ok", RunID: want.ID, Data: result}); err != nil {
			return err
		}
	} else if result.Reproduced {
		fmt.Fprintf(formatter.Writer, "✓ Run %s reproduced: %s\n", want.ID, runResult(want))
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Run %s differs in %d place(s)\n", want.ID, len(diffs))
		for _, d := range diffs {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}

	if !result.Reproduced {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s not reproduced", want.ID))
	}
	return nil
}

func runReportDelete(opts *ReportOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return storeFailure(formatter, err)
	}
	defer st.Close()

	if err := st.DeleteRun(cmd.Context(), id); err != nil {
		return storeFailure(formatter, err)
	}
	if opts.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", RunID: id})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted run %s\n", id)
	return nil
}

func readRun(ctx context.Context, opts *ReportOptions, id string) (*store.Run, error) {
	st, err := opts.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ReadRun(ctx, id)
}

func outputRun(formatter *OutputFormatter, run *store.Run, blocks bool) error {
	if formatter.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", RunID: run.ID, Data: run})
	}
	writeRun(formatter.Writer, run, blocks)
	return nil
}

func writeRun(w io.Writer, run *store.Run, blocks bool) {
	fmt.Fprintf(w, "Run %s (#%d)\n", run.ID, run.Seq)
	fmt.Fprintf(w, "  source:  %s\n", run.Source)
	fmt.Fprintf(w, "  entry:   %s%s\n", run.Entry, argList(run.Args))
	fmt.Fprintf(w, "  options: join %s, max steps %d, max depth %d\n",
		run.Options.Policy, run.Options.MaxSteps, run.Options.MaxDepth)
	fmt.Fprintf(w, "  status:  %s\n", run.Status)
	fmt.Fprintf(w, "  result:  %s\n", runResult(run))
	if len(run.Specializations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Specializations:")
		writeSpecializations(w, run.Specializations, blocks)
	}
}

func runResult(r *store.Run) string {
	if r.Status == store.StatusFailed {
		return r.ErrorCode + " " + r.ErrorMessage
	}
	return r.Outcome
}

func argList(args []string) string {
	return "(" + strings.Join(args, ", ") + ")"
}
