package frontend

import (
	"fmt"

	"github.com/NinoDS/jssat/internal/ir"
)

// Compile translates a decoded description into a validated program.
//
// Problems with the description itself are reported as *CompileError with
// the field path of the offending element, e.g.
// "functions[0].blocks[1].body[2]". Structural problems found by
// ir.Program.Validate are returned wrapped.
func Compile(spec *ProgramSpec) (*Module, error) {
	c := &compiler{
		b:         ir.NewBuilder(),
		funcs:     make(map[string]*ir.FunctionBuilder),
		externals: make(map[string]ir.ExternalFunction),
		globals:   make(map[string]ir.Global),
	}

	for i, e := range spec.Externals {
		if err := c.external(fmt.Sprintf("externals[%d]", i), e); err != nil {
			return nil, err
		}
	}
	for i, g := range spec.Globals {
		field := fmt.Sprintf("globals[%d]", i)
		if _, dup := c.globals[g.Name]; dup {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("global %q declared twice", g.Name)}
		}
		sort := ir.Sort(g.Sort)
		if !ir.ValidSorts[sort] {
			return nil, &CompileError{Field: field + ".sort", Message: fmt.Sprintf("unknown sort %q", g.Sort)}
		}
		c.globals[g.Name] = c.b.Global(g.Name, sort)
	}

	// Declare every function before any body so calls may refer forward.
	for i, f := range spec.Functions {
		if err := c.declare(fmt.Sprintf("functions[%d]", i), f); err != nil {
			return nil, err
		}
	}
	for i, f := range spec.Functions {
		if err := c.function(fmt.Sprintf("functions[%d]", i), f); err != nil {
			return nil, err
		}
	}

	mod := &Module{}
	if spec.Entry != nil {
		if _, ok := c.funcs[spec.Entry.Function]; !ok {
			return nil, &CompileError{Field: "entry.function", Message: fmt.Sprintf("unknown function %q", spec.Entry.Function)}
		}
		mod.Entry = spec.Entry.Function
		mod.Args = spec.Entry.Args
	}

	prog, err := c.b.Finish()
	if err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}
	mod.Program = prog
	return mod, nil
}

type compiler struct {
	b         *ir.Builder
	funcs     map[string]*ir.FunctionBuilder
	externals map[string]ir.ExternalFunction
	globals   map[string]ir.Global
}

func (c *compiler) external(field string, e ExternalSpec) error {
	if _, dup := c.externals[e.Name]; dup {
		return &CompileError{Field: field, Message: fmt.Sprintf("external %q declared twice", e.Name)}
	}
	params := make([]ir.FFIType, len(e.Params))
	for i, p := range e.Params {
		t := ir.FFIType(p)
		if !ir.ValidFFITypes[t] || t == ir.FFIVoid {
			return &CompileError{Field: fmt.Sprintf("%s.params[%d]", field, i), Message: fmt.Sprintf("invalid parameter type %q", p)}
		}
		params[i] = t
	}
	ret := ir.FFIVoid
	if e.Returns != "" {
		ret = ir.FFIType(e.Returns)
		if !ir.ValidFFITypes[ret] {
			return &CompileError{Field: field + ".returns", Message: fmt.Sprintf("invalid result type %q", e.Returns)}
		}
	}
	c.externals[e.Name] = c.b.External(e.Name, params, ret)
	return nil
}

func (c *compiler) declare(field string, f FunctionSpec) error {
	if _, dup := c.funcs[f.Name]; dup {
		return &CompileError{Field: field, Message: fmt.Sprintf("function %q declared twice", f.Name)}
	}
	if len(f.Blocks) == 0 {
		return &CompileError{Field: field + ".blocks", Message: "at least one block is required"}
	}
	sorts := make([]ir.Sort, len(f.Params))
	for i, p := range f.Params {
		s := ir.Sort(p.Sort)
		if !ir.ValidSorts[s] {
			return &CompileError{Field: fmt.Sprintf("%s.params[%d].sort", field, i), Message: fmt.Sprintf("unknown sort %q", p.Sort)}
		}
		sorts[i] = s
	}
	c.funcs[f.Name] = c.b.Function(f.Name, sorts...)
	return nil
}

func (c *compiler) function(field string, f FunctionSpec) error {
	fb := c.funcs[f.Name]

	blocks := make(map[string]*ir.BlockBuilder, len(f.Blocks))
	for i, blk := range f.Blocks {
		if _, dup := blocks[blk.Name]; dup {
			return &CompileError{Field: fmt.Sprintf("%s.blocks[%d]", field, i), Message: fmt.Sprintf("block %q declared twice", blk.Name)}
		}
		if i == 0 {
			blocks[blk.Name] = fb.Entry()
			continue
		}
		blocks[blk.Name] = fb.NewBlock()
	}

	for i, blk := range f.Blocks {
		bc := &blockCompiler{
			c:      c,
			field:  fmt.Sprintf("%s.blocks[%d]", field, i),
			bb:     blocks[blk.Name],
			blocks: blocks,
			regs:   make(map[string]ir.Register),
		}
		if i == 0 {
			if len(blk.Params) > 0 {
				return &CompileError{Field: bc.field + ".params", Message: "the entry block takes the function parameters"}
			}
			for j, p := range f.Params {
				if err := bc.define(fmt.Sprintf("%s.params[%d]", field, j), p.Name, fb.Params()[j]); err != nil {
					return err
				}
			}
		} else {
			for j, name := range blk.Params {
				if err := bc.define(fmt.Sprintf("%s.params[%d]", bc.field, j), name, bc.bb.Param()); err != nil {
					return err
				}
			}
		}
		if err := bc.block(blk); err != nil {
			return err
		}
	}
	return nil
}

// blockCompiler translates one block. Register names are scoped to it.
type blockCompiler struct {
	c      *compiler
	field  string
	bb     *ir.BlockBuilder
	blocks map[string]*ir.BlockBuilder
	regs   map[string]ir.Register
}

func (bc *blockCompiler) define(field, name string, r ir.Register) error {
	if name == "" {
		return &CompileError{Field: field, Message: "register name is required"}
	}
	if _, dup := bc.regs[name]; dup {
		return &CompileError{Field: field, Message: fmt.Sprintf("register %q defined twice in block", name)}
	}
	bc.regs[name] = r
	return nil
}

func (bc *blockCompiler) use(field, name string) (ir.Register, error) {
	r, ok := bc.regs[name]
	if !ok {
		return ir.Register{}, &CompileError{Field: field, Message: fmt.Sprintf("register %q is not defined in this block", name)}
	}
	return r, nil
}

func (bc *blockCompiler) uses(field string, names []string) ([]ir.Register, error) {
	out := make([]ir.Register, len(names))
	for i, n := range names {
		r, err := bc.use(fmt.Sprintf("%s.args[%d]", field, i), n)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (bc *blockCompiler) block(blk BlockSpec) error {
	for i, inst := range blk.Body {
		if err := bc.instruction(fmt.Sprintf("%s.body[%d]", bc.field, i), inst); err != nil {
			return err
		}
	}
	return bc.end(bc.field+".end", blk.End)
}

func arity(field string, inst InstSpec, n int) error {
	if len(inst.Args) != n {
		return &CompileError{Field: field, Message: fmt.Sprintf("%s takes %d arguments, got %d", inst.Op, n, len(inst.Args))}
	}
	return nil
}

func (bc *blockCompiler) key(field string, inst InstSpec) (ir.RecordKey, error) {
	switch {
	case inst.Slot != "" && inst.Key != "":
		return ir.RecordKey{}, &CompileError{Field: field, Message: "key and slot are exclusive"}
	case inst.Slot != "":
		s, ok := ir.ParseInternalSlot(inst.Slot)
		if !ok {
			return ir.RecordKey{}, &CompileError{Field: field + ".slot", Message: fmt.Sprintf("unknown slot %q", inst.Slot)}
		}
		return ir.SlotKey(s), nil
	}
	r, err := bc.use(field+".key", inst.Key)
	if err != nil {
		return ir.RecordKey{}, err
	}
	return ir.PropKey(r), nil
}

func (bc *blockCompiler) function(field, name string) (ir.Function, error) {
	fb, ok := bc.c.funcs[name]
	if !ok {
		return ir.Function{}, &CompileError{Field: field + ".target", Message: fmt.Sprintf("unknown function %q", name)}
	}
	return fb.ID(), nil
}

func (bc *blockCompiler) instruction(field string, inst InstSpec) error {
	bb := bc.bb
	var result ir.Register
	produces := true

	switch inst.Op {
	case "string":
		result = bb.MakeString(inst.Text)
	case "int":
		result = bb.MakeInteger(inst.Value)
	case "bool":
		result = bb.MakeBoolean(inst.Flag)
	case "trivial":
		item, ok := ir.ParseTrivialItem(inst.Item)
		if !ok {
			return &CompileError{Field: field + ".item", Message: fmt.Sprintf("unknown trivial item %q", inst.Item)}
		}
		result = bb.MakeTrivial(item)
	case "record":
		result = bb.NewRecord()
	case "list":
		result = bb.NewList()

	case "get":
		if err := arity(field, inst, 1); err != nil {
			return err
		}
		rec, err := bc.use(field+".args[0]", inst.Args[0])
		if err != nil {
			return err
		}
		k, err := bc.key(field, inst)
		if err != nil {
			return err
		}
		result = bb.RecordGet(rec, k)

	case "set":
		if err := arity(field, inst, 2); err != nil {
			return err
		}
		args, err := bc.uses(field, inst.Args)
		if err != nil {
			return err
		}
		k, err := bc.key(field, inst)
		if err != nil {
			return err
		}
		bb.RecordSet(args[0], k, args[1])
		produces = false

	case "lt", "eq", "add", "or":
		if err := arity(field, inst, 2); err != nil {
			return err
		}
		args, err := bc.uses(field, inst.Args)
		if err != nil {
			return err
		}
		op, _ := ir.ParseBinaryKind(inst.Op)
		result = bb.Binary(op, args[0], args[1])

	case "not":
		if err := arity(field, inst, 1); err != nil {
			return err
		}
		v, err := bc.use(field+".args[0]", inst.Args[0])
		if err != nil {
			return err
		}
		result = bb.Negate(v)

	case "fnptr":
		f, err := bc.function(field, inst.Target)
		if err != nil {
			return err
		}
		result = bb.FnPtr(f)

	case "call":
		f, err := bc.function(field, inst.Target)
		if err != nil {
			return err
		}
		args, err := bc.uses(field, inst.Args)
		if err != nil {
			return err
		}
		if inst.Dst == "" {
			bb.CallVoid(f, args...)
			return nil
		}
		result = bb.Call(f, args...)

	case "call_extern":
		e, ok := bc.c.externals[inst.Target]
		if !ok {
			return &CompileError{Field: field + ".target", Message: fmt.Sprintf("unknown external %q", inst.Target)}
		}
		args, err := bc.uses(field, inst.Args)
		if err != nil {
			return err
		}
		if inst.Dst == "" {
			bb.CallExternVoid(e, args...)
			return nil
		}
		result = bb.CallExtern(e, args...)

	case "call_virt":
		if len(inst.Args) == 0 {
			return &CompileError{Field: field, Message: "call_virt needs the function pointer as its first argument"}
		}
		args, err := bc.uses(field, inst.Args)
		if err != nil {
			return err
		}
		result = bb.CallVirt(args[0], args[1:]...)

	case "load":
		g, ok := bc.c.globals[inst.Target]
		if !ok {
			return &CompileError{Field: field + ".target", Message: fmt.Sprintf("unknown global %q", inst.Target)}
		}
		result = bb.LoadGlobal(g)

	case "store":
		g, ok := bc.c.globals[inst.Target]
		if !ok {
			return &CompileError{Field: field + ".target", Message: fmt.Sprintf("unknown global %q", inst.Target)}
		}
		if err := arity(field, inst, 1); err != nil {
			return err
		}
		v, err := bc.use(field+".args[0]", inst.Args[0])
		if err != nil {
			return err
		}
		bb.StoreGlobal(g, v)
		produces = false

	case "is_empty", "deref":
		if err := arity(field, inst, 1); err != nil {
			return err
		}
		ref, err := bc.use(field+".args[0]", inst.Args[0])
		if err != nil {
			return err
		}
		if inst.Op == "is_empty" {
			result = bb.RefIsEmpty(ref)
		} else {
			result = bb.RefDeref(ref)
		}

	case "comment":
		bb.Comment(inst.Text)
		produces = false

	default:
		return &CompileError{Field: field + ".op", Message: fmt.Sprintf("unknown operation %q", inst.Op)}
	}

	if !produces {
		if inst.Dst != "" {
			return &CompileError{Field: field + ".dst", Message: fmt.Sprintf("%s produces no value", inst.Op)}
		}
		return nil
	}
	if inst.Dst == "" {
		if inst.Op == "call_virt" {
			return nil
		}
		return &CompileError{Field: field + ".dst", Message: fmt.Sprintf("%s needs a destination register", inst.Op)}
	}
	return bc.define(field+".dst", inst.Dst, result)
}

func (bc *blockCompiler) jump(field string, j JumpSpec) (*ir.BlockBuilder, []ir.Register, error) {
	target, ok := bc.blocks[j.Block]
	if !ok {
		return nil, nil, &CompileError{Field: field + ".block", Message: fmt.Sprintf("unknown block %q", j.Block)}
	}
	args, err := bc.uses(field, j.Args)
	if err != nil {
		return nil, nil, err
	}
	return target, args, nil
}

func (bc *blockCompiler) end(field string, e EndSpec) error {
	set := 0
	for _, on := range []bool{e.Jump != nil, e.Branch != nil, e.Return != nil, e.Unreachable} {
		if on {
			set++
		}
	}
	if set != 1 {
		return &CompileError{Field: field, Message: "exactly one of jump, branch, return and unreachable is required"}
	}

	switch {
	case e.Jump != nil:
		target, args, err := bc.jump(field+".jump", *e.Jump)
		if err != nil {
			return err
		}
		bc.bb.Jump(target, args...)

	case e.Branch != nil:
		cond, err := bc.use(field+".branch.cond", e.Branch.Cond)
		if err != nil {
			return err
		}
		then, thenArgs, err := bc.jump(field+".branch.then", e.Branch.Then)
		if err != nil {
			return err
		}
		els, elseArgs, err := bc.jump(field+".branch.else", e.Branch.Else)
		if err != nil {
			return err
		}
		bc.bb.JumpIf(cond, then, thenArgs, els, elseArgs)

	case e.Return != nil:
		if e.Return.Value == "" {
			bc.bb.ReturnVoid()
			return nil
		}
		v, err := bc.use(field+".return.value", e.Return.Value)
		if err != nil {
			return err
		}
		bc.bb.Return(v)

	default:
		bc.bb.Unreachable()
	}
	return nil
}
