package store

import (
	"errors"
	"fmt"

	"github.com/NinoDS/jssat/internal/assembler"
	"github.com/NinoDS/jssat/internal/backend"
	"github.com/NinoDS/jssat/internal/canon"
	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/ir"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one compilation of a program description.
type Run struct {
	// ID is assigned by WriteRun when empty.
	ID string `json:"id"`
	// Seq is the logical insertion order, assigned by WriteRun.
	Seq int64 `json:"seq"`

	Source      string   `json:"source"`
	ProgramHash string   `json:"program_hash"`
	Entry       string   `json:"entry"`
	Args        []string `json:"args"`
	Options     Options  `json:"options"`

	Steps   int    `json:"steps"`
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Assembled is the text of the assembled program of a successful run.
	Assembled string `json:"assembled,omitempty"`

	Specializations []Specialization `json:"specializations,omitempty"`
}

// Options are the engine settings a run used.
type Options struct {
	Policy   string `json:"policy"`
	MaxSteps int    `json:"max_steps"`
	MaxDepth int    `json:"max_depth"`
}

// Specialization is one function specialization discovered by a run.
type Specialization struct {
	// Seq is the position in discovery order.
	Seq int `json:"seq"`

	Function      string `json:"function"`
	AssembledName string `json:"assembled_name,omitempty"`
	Signature     string `json:"signature"`
	SignatureHash string `json:"signature_hash"`
	State         string `json:"state"`
	Outcome       string `json:"outcome,omitempty"`
	OutcomeHash   string `json:"outcome_hash"`
	Iterations    int    `json:"iterations"`
	Tentative     bool   `json:"tentative"`

	Blocks []BlockVisit `json:"blocks,omitempty"`
}

// BlockVisit is one explored block of a specialization.
type BlockVisit struct {
	Block  string `json:"block"`
	Params string `json:"params"`
	Exit   string `json:"exit"`
	Visits int    `json:"visits"`
}

// Meta describes how a run was requested.
type Meta struct {
	Source  string
	Entry   string
	Args    []string
	Options Options
}

// ProgramHash fingerprints the text form of prog.
func ProgramHash(prog *ir.Program) string {
	return canon.HashBytes(canon.DomainProgram, []byte(prog.String()))
}

// Record builds the report of a successful run from the engine state and the
// assembled program. asm may be nil for an exploration-only report; the
// assembled names and text are then left empty.
func Record(meta Meta, prog *ir.Program, eng *engine.Engine, asm *assembler.Program) (*Run, error) {
	run := newRun(meta, prog)
	run.Steps = eng.Steps()
	run.Status = StatusOK
	if asm != nil {
		run.Assembled = asm.String()
	}

	for _, k := range eng.Roots() {
		if inv, ok := eng.Lookup(k); ok && k.Function == rootFunction(prog, meta.Entry) {
			run.Outcome = inv.Outcome.String()
		}
	}

	for i, inv := range eng.AllFnInvocations() {
		f, err := prog.Func(inv.Key.Function)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		sp := Specialization{
			Seq:           i,
			Function:      f.Name,
			AssembledName: assembledName(asm, inv),
			Signature:     inv.Signature.Text,
			SignatureHash: inv.Signature.Hash,
			State:         inv.State.String(),
			Outcome:       inv.Outcome.String(),
			OutcomeHash:   canon.HashBytes(canon.DomainOutcome, []byte(inv.Outcome.String())),
			Iterations:    inv.Iterations,
			Tentative:     inv.Tentative(),
		}
		for _, b := range inv.SortedBlocks() {
			res := inv.Blocks[b]
			sp.Blocks = append(sp.Blocks, BlockVisit{
				Block:  "$" + b.String(),
				Params: res.State.FormatList(res.Params),
				Exit:   res.Exit.String(),
				Visits: res.Visits,
			})
		}
		run.Specializations = append(run.Specializations, sp)
	}
	return run, nil
}

// RecordFailure builds the report of a run that stopped with err.
func RecordFailure(meta Meta, prog *ir.Program, err error) *Run {
	run := newRun(meta, prog)
	run.Status = StatusFailed
	run.ErrorMessage = err.Error()
	run.ErrorCode = ErrorCode(err)
	return run
}

// ErrorCode classifies err for reports: the engine error code,
// ASSEMBLE_FAILED, NOT_IMPLEMENTED for constructs the backend cannot lower,
// or ERROR for anything else.
func ErrorCode(err error) string {
	var ee *engine.Error
	var ae *assembler.Error
	switch {
	case errors.As(err, &ee):
		return string(ee.Code)
	case errors.As(err, &ae):
		return "ASSEMBLE_FAILED"
	case backend.IsNotImplemented(err):
		return string(engine.ErrCodeNotImplemented)
	}
	return "ERROR"
}

func newRun(meta Meta, prog *ir.Program) *Run {
	args := meta.Args
	if args == nil {
		args = []string{}
	}
	run := &Run{
		Source:  meta.Source,
		Entry:   meta.Entry,
		Args:    args,
		Options: meta.Options,
	}
	if prog != nil {
		run.ProgramHash = ProgramHash(prog)
	}
	return run
}

func rootFunction(prog *ir.Program, name string) ir.Function {
	fn, _ := prog.FunctionByName(name)
	return fn
}

// assembledName finds the assembled function emitted for inv.
func assembledName(asm *assembler.Program, inv *engine.Invocation) string {
	if asm == nil {
		return ""
	}
	for _, f := range asm.Specializations(inv.Key.Function) {
		if asm.Functions[f].Signature == inv.Signature.Text {
			return asm.Functions[f].Name
		}
	}
	return ""
}
