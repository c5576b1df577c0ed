package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NinoDS/jssat/internal/frontend"
	"github.com/NinoDS/jssat/internal/ir"
)

// Problem is one reason a program description was rejected.
type Problem struct {
	Field    string `json:"field,omitempty"`
	Function string `json:"function,omitempty"`
	Block    string `json:"block,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool      `json:"valid"`
	Functions []string  `json:"functions,omitempty"`
	Externals int       `json:"externals"`
	Entry     string    `json:"entry,omitempty"`
	Recursive []string  `json:"recursive,omitempty"`
	Problems  []Problem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Check a program description without exploring it",
		Long: `Load a program description and check its structure: schema, names,
terminators, block-local registers, jump arity and call targets.
Recursive functions are listed; recursion is legal.

Faster than compile for development feedback; no types are explored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	mod, err := frontend.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	if err != nil {
		return outputValidationErrors(formatter, problems(err))
	}

	result := ValidationResult{Valid: true, Entry: mod.Entry, Externals: len(mod.Program.Externals)}
	for _, f := range mod.Program.SortedFunctions() {
		result.Functions = append(result.Functions, mod.Program.Functions[f].Name)
	}
	for _, c := range mod.Program.RecursiveCycles() {
		result.Recursive = append(result.Recursive, c.String())
	}
	formatter.VerboseLog("Loaded %d function(s) from %s", len(result.Functions), path)

	if opts.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result})
	}

	fmt.Fprintf(formatter.Writer, "✓ Program valid: %d function(s), %d external(s)\n",
		len(result.Functions), result.Externals)
	if mod.Entry != "" {
		fmt.Fprintf(formatter.Writer, "  entry: %s(%s)\n", mod.Entry, strings.Join(mod.Args, ", "))
	}
	for _, r := range result.Recursive {
		fmt.Fprintf(formatter.Writer, "  recursive: %s\n", r)
	}
	return nil
}

// problems flattens a load error into its individual problems. Structural
// errors come joined; description errors carry a field path and, for CUE,
// a position.
func problems(err error) []Problem {
	var ce *frontend.CompileError
	if errors.As(err, &ce) {
		p := Problem{Field: ce.Field, Message: ce.Message}
		if ce.Pos.IsValid() {
			p.Line, p.Column = ce.Pos.Line(), ce.Pos.Column()
		}
		return []Problem{p}
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []Problem{problemOf(err)}
	}
	var out []Problem
	for _, e := range joined.Unwrap() {
		out = append(out, problemOf(e))
	}
	return out
}

func problemOf(err error) Problem {
	var ve *ir.ValidationError
	if errors.As(err, &ve) {
		return Problem{Function: ve.Function, Block: ve.Block, Message: ve.Message}
	}
	return Problem{Message: err.Error()}
}

// outputValidationErrors reports a rejected program. Rejection is a
// validation failure, not a command error.
func outputValidationErrors(formatter *OutputFormatter, ps []Problem) error {
	msg := fmt.Sprintf("validation failed with %d problem(s)", len(ps))
	if formatter.Format == "json" {
		_ = formatter.Respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: ErrCodeInvalid, Message: msg},
			Data:   ValidationResult{Valid: false, Problems: ps},
		})
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	for _, p := range ps {
		fmt.Fprintf(formatter.Writer, "  %s\n", p)
	}
	return NewExitError(ExitFailure, msg)
}

// String renders the problem with whatever location it has.
func (p Problem) String() string {
	var loc []string
	if p.Line > 0 {
		loc = append(loc, fmt.Sprintf("%d:%d", p.Line, p.Column))
	}
	if p.Field != "" {
		loc = append(loc, p.Field)
	}
	if p.Function != "" {
		fn := p.Function
		if p.Block != "" {
			fn += " $" + p.Block
		}
		loc = append(loc, fn)
	}
	if len(loc) == 0 {
		return p.Message
	}
	return strings.Join(loc, " ") + ": " + p.Message
}
