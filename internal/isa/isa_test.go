package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/id"
)

type reg = id.Register[id.NoContext]

func r(v uint32) reg { return id.New[id.RegisterKind, id.NoContext](v) }

// op is a minimal instruction: optional result, operands, purity flag.
type op struct {
	result *reg
	args   []reg
	pure   bool
}

func (o *op) DeclaredRegister() (reg, bool) {
	if o.result == nil {
		return reg{}, false
	}
	return *o.result, true
}

func (o *op) UsedRegisters() []reg { return o.args }

func (o *op) UsedRegistersMut() []*reg {
	out := make([]*reg, len(o.args))
	for i := range o.args {
		out[i] = &o.args[i]
	}
	return out
}

func (o *op) IsPure() bool { return o.pure }

func def(result uint32, args ...uint32) *op {
	res := r(result)
	o := &op{result: &res, pure: true}
	for _, a := range args {
		o.args = append(o.args, r(a))
	}
	return o
}

func effect(args ...uint32) *op {
	o := &op{}
	for _, a := range args {
		o.args = append(o.args, r(a))
	}
	return o
}

// =============================================================================
// EliminateDeadCode
// =============================================================================

func TestEliminateDeadCode_RemovesUnusedPureChain(t *testing.T) {
	insts := []*op{
		def(1),    // dead, only feeds 2
		def(2, 1), // dead
		def(3),    // live via terminator
	}

	out := EliminateDeadCode(insts, []reg{r(3)})

	require.Len(t, out, 1)
	assert.Same(t, insts[2], out[0])
	assert.Len(t, insts, 3, "input slice untouched")
}

func TestEliminateDeadCode_KeepsImpureAndTheirOperands(t *testing.T) {
	insts := []*op{
		def(1),
		def(2),
		effect(1),
	}

	out := EliminateDeadCode(insts, nil)

	require.Len(t, out, 2)
	assert.Same(t, insts[0], out[0])
	assert.Same(t, insts[2], out[1])
}

func TestEliminateDeadCode_ImpureWithUnusedResultStays(t *testing.T) {
	res := r(1)
	call := &op{result: &res}

	out := EliminateDeadCode([]*op{call}, nil)
	assert.Len(t, out, 1)
}

// =============================================================================
// RenameUses
// =============================================================================

func TestRenameUses(t *testing.T) {
	o := effect(1, 2, 1)

	RenameUses[id.NoContext](o, func(x reg) reg { return r(x.Value() + 10) })

	assert.Equal(t, []reg{r(11), r(12), r(11)}, o.UsedRegisters())
}

// =============================================================================
// CheckBlock
// =============================================================================

func TestCheckBlock(t *testing.T) {
	tests := []struct {
		name    string
		params  []reg
		insts   []*op
		end     Instruction[id.NoContext]
		wantErr any
	}{
		{
			name:   "params and locals",
			params: []reg{r(0)},
			insts:  []*op{def(1, 0), def(2, 0, 1)},
			end:    effect(2),
		},
		{
			name:    "dangling operand",
			params:  []reg{r(0)},
			insts:   []*op{def(1, 5)},
			wantErr: &UndefinedRegisterError{},
		},
		{
			name:    "use before definition",
			insts:   []*op{def(1, 2), def(2)},
			wantErr: &UndefinedRegisterError{},
		},
		{
			name:    "redefinition",
			params:  []reg{r(0)},
			insts:   []*op{def(0)},
			wantErr: &RedefinedRegisterError{},
		},
		{
			name:    "terminator reads undefined",
			insts:   []*op{def(1)},
			end:     effect(9),
			wantErr: &UndefinedRegisterError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBlock(tt.params, tt.insts, tt.end)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.IsType(t, tt.wantErr, err)
		})
	}
}

func TestCheckBlock_TerminatorIndex(t *testing.T) {
	err := CheckBlock([]reg{}, []*op{def(1)}, Instruction[id.NoContext](effect(7)))

	var undef *UndefinedRegisterError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, 1, undef.Index)
	assert.Equal(t, "7", undef.Register)
}

// =============================================================================
// Helpers
// =============================================================================

func TestDeclaredAndUses(t *testing.T) {
	insts := []*op{def(1), effect(1, 1), def(2, 1)}

	assert.Equal(t, []reg{r(1), r(2)}, Declared[id.NoContext](insts))
	assert.Equal(t, map[reg]int{r(1): 3}, Uses[id.NoContext](insts))
}

func TestSortedRegisters(t *testing.T) {
	assert.Equal(t, []reg{r(1), r(2), r(5)}, SortedRegisters([]reg{r(5), r(1), r(2), r(5)}))
}
