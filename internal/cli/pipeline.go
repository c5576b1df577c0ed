package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NinoDS/jssat/internal/assembler"
	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/frontend"
	"github.com/NinoDS/jssat/internal/store"
	"github.com/NinoDS/jssat/internal/types"
)

// compileRequest names what to compile.
type compileRequest struct {
	Path  string
	Entry string   // overrides the description's entry when set
	Args  []string // argument types, used only with Entry
	// ExploreOnly stops after exploration; the run has no assembled program.
	ExploreOnly bool
}

// compilation is the result of one pass through the pipeline. Err holds a
// compilation failure; the run is recorded either way.
type compilation struct {
	Module     *frontend.Module
	Meta       store.Meta
	Engine     *engine.Engine
	Invocation *engine.Invocation
	Assembled  *assembler.Program
	Run        *store.Run
	Err        error
}

// compileProgram loads req.Path, explores the entry and assembles the
// result. The returned error covers problems that prevent compiling at
// all: unreadable descriptions, unknown entries, unparsable argument types.
func compileProgram(opts *RootOptions, req compileRequest, logger *slog.Logger) (*compilation, error) {
	mod, err := frontend.LoadFile(req.Path)
	if err != nil {
		return nil, err
	}

	entry, args := mod.Entry, mod.Args
	if req.Entry != "" {
		entry, args = req.Entry, req.Args
	}
	if entry == "" {
		return nil, fmt.Errorf("%s names no entry function; pass --entry", req.Path)
	}
	fn, ok := mod.Program.FunctionByName(entry)
	if !ok {
		return nil, fmt.Errorf("unknown function %q", entry)
	}

	engOpts, runOpts, err := opts.engineOptions(logger)
	if err != nil {
		return nil, err
	}
	eng := engine.New(mod.Program, engOpts...)

	argTypes := make([]types.RegisterType, len(args))
	for i, s := range args {
		t, err := types.Parse(eng.Arena(), s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		argTypes[i] = t
	}

	meta := store.Meta{Source: req.Path, Entry: entry, Args: args, Options: runOpts}
	c := &compilation{Module: mod, Meta: meta, Engine: eng}

	logger.Debug("compiling", "program", req.Path, "entry", entry, "args", args)
	c.Invocation, c.Err = eng.Explore(fn, argTypes)
	if c.Err != nil {
		c.Run = store.RecordFailure(meta, mod.Program, c.Err)
		return c, nil
	}

	if !req.ExploreOnly {
		c.Assembled, c.Err = assembler.Assemble(mod.Program, eng, assembler.WithLogger(logger))
		if c.Err != nil {
			c.Run = store.RecordFailure(meta, mod.Program, c.Err)
			return c, nil
		}
	}

	c.Run, err = store.Record(meta, mod.Program, eng, c.Assembled)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// recordRun writes run to the database at path.
func recordRun(ctx context.Context, path string, run *store.Run) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.WriteRun(ctx, run)
}
