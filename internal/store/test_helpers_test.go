package store

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/assembler"
	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/testutil"
	"github.com/NinoDS/jssat/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixedIDs hands out run-1, run-2, ...
type fixedIDs struct{ n int }

func (g *fixedIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("run-%d", g.n), nil
}

// createTestStore creates a new store in a temporary directory with
// predictable run identifiers.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(&fixedIDs{}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testOptions = Options{Policy: "fail", MaxSteps: engine.DefaultMaxSteps, MaxDepth: engine.DefaultMaxDepth}

// compileRun explores fx from its entry with args and records the result.
func compileRun(t *testing.T, fx testutil.Fixture, args []string, argTypes ...types.RegisterType) *Run {
	t.Helper()
	f, err := fx.Program.Func(fx.Entry)
	require.NoError(t, err)
	meta := Meta{Source: fx.Name + ".cue", Entry: f.Name, Args: args, Options: testOptions}

	eng := engine.New(fx.Program, engine.WithLogger(quiet))
	if _, err := eng.Explore(fx.Entry, argTypes); err != nil {
		return RecordFailure(meta, fx.Program, err)
	}
	asm, err := assembler.Assemble(fx.Program, eng, assembler.WithLogger(quiet))
	require.NoError(t, err)
	run, err := Record(meta, fx.Program, eng, asm)
	require.NoError(t, err)
	return run
}
