package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/NinoDS/jssat/internal/assembler"
	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/frontend"
	"github.com/NinoDS/jssat/internal/store"
	"github.com/NinoDS/jssat/internal/types"
)

// Harness holds the state of one scenario execution.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	module *frontend.Module
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database, so runs never see each
// other's reports. Run IDs are fixed ("run-1"), which keeps stored rows
// comparable across executions.
//
// Execution flow:
//  1. Load the program description
//  2. Explore every call against one engine, checking expect clauses
//  3. Assemble, unless a call failed
//  4. Record the run in the store and read it back
//  5. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all;
// compilation failures are results.
func Run(scenario *Scenario) (*Result, error) {
	mod, err := frontend.LoadFile(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(fixedID("run-1")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	policy, err := types.ParseJoinPolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []engine.Option{engine.WithJoinPolicy(policy), engine.WithLogger(logger)}
	maxSteps, maxDepth := engine.DefaultMaxSteps, engine.DefaultMaxDepth
	if scenario.MaxSteps > 0 {
		maxSteps = scenario.MaxSteps
	}
	if scenario.MaxDepth > 0 {
		maxDepth = scenario.MaxDepth
	}
	opts = append(opts, engine.WithMaxSteps(maxSteps), engine.WithMaxDepth(maxDepth))

	h := &Harness{
		store:  st,
		engine: engine.New(mod.Program, opts...),
		module: mod,
		logger: logger,
	}

	calls := scenario.Calls
	if len(calls) == 0 {
		if mod.Entry == "" {
			return nil, fmt.Errorf("scenario %s has no calls and the program has no entry", scenario.Name)
		}
		calls = []Call{{Entry: mod.Entry, Args: mod.Args}}
	}

	meta := store.Meta{
		Source:  scenario.Program,
		Entry:   calls[0].Entry,
		Args:    calls[0].Args,
		Options: store.Options{Policy: policy.String(), MaxSteps: maxSteps, MaxDepth: maxDepth},
	}

	ctx := context.Background()
	result := NewResult()

	runErr, err := h.executeCalls(calls, result)
	if err != nil {
		return nil, fmt.Errorf("failed to execute calls: %w", err)
	}

	var run *store.Run
	if runErr == nil {
		asm, err := assembler.Assemble(mod.Program, h.engine, assembler.WithLogger(logger))
		if err != nil {
			result.AddError(fmt.Sprintf("assemble: %v", err))
			run = store.RecordFailure(meta, mod.Program, err)
		} else if run, err = store.Record(meta, mod.Program, h.engine, asm); err != nil {
			return nil, err
		}
	} else {
		run = store.RecordFailure(meta, mod.Program, runErr)
	}

	if err := st.WriteRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	stored, err := st.ReadRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run back: %w", err)
	}
	result.Run = stored
	result.addTrace(stored)

	actx := &AssertionContext{Store: st, Ctx: ctx, RunID: stored.ID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeCalls explores calls in order. The first compilation error stops
// the sequence and is returned as runErr; err reports calls that cannot be
// issued at all.
func (h *Harness) executeCalls(calls []Call, result *Result) (runErr, err error) {
	for i, c := range calls {
		fn, ok := h.module.Program.FunctionByName(c.Entry)
		if !ok {
			return nil, fmt.Errorf("calls[%d]: unknown function %q", i, c.Entry)
		}
		args, err := h.parseArgs(c.Args)
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}

		h.logger.Debug("scenario call", "entry", c.Entry, "args", c.Args)
		inv, exploreErr := h.engine.Explore(fn, args)
		checkCall(i, c, inv, exploreErr, result)
		if exploreErr != nil {
			return exploreErr, nil
		}
	}
	return nil, nil
}

func (h *Harness) parseArgs(texts []string) ([]types.RegisterType, error) {
	args := make([]types.RegisterType, len(texts))
	for i, s := range texts {
		t, err := types.Parse(h.engine.Arena(), s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = t
	}
	return args, nil
}

// checkCall compares the end of one call with its expect clause.
func checkCall(i int, c Call, inv *engine.Invocation, err error, result *Result) {
	want := c.Expect
	if want == nil {
		want = &ExpectClause{}
	}
	switch {
	case err != nil && want.Error == "":
		result.AddError(fmt.Sprintf("calls[%d] %s: unexpected error: %v", i, c.Entry, err))
	case err != nil && store.ErrorCode(err) != want.Error:
		result.AddError(fmt.Sprintf("calls[%d] %s: expected error %s, got %s: %v", i, c.Entry, want.Error, store.ErrorCode(err), err))
	case err == nil && want.Error != "":
		result.AddError(fmt.Sprintf("calls[%d] %s: expected error %s, got outcome %s", i, c.Entry, want.Error, inv.Outcome))
	case err == nil && want.Outcome != "" && inv.Outcome.String() != want.Outcome:
		result.AddError(fmt.Sprintf("calls[%d] %s: expected outcome %q, got %q", i, c.Entry, want.Outcome, inv.Outcome))
	}
}

// fixedID is an IDGenerator that always returns the same identifier; each
// harness store holds a single run.
type fixedID string

func (f fixedID) NewID() (string, error) { return string(f), nil }

var _ store.IDGenerator = fixedID("")
