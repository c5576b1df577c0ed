package frontend

import "github.com/NinoDS/jssat/internal/ir"

// ProgramSpec is a decoded program description. The json tags drive CUE
// decoding, the yaml tags YAML decoding.
type ProgramSpec struct {
	Entry     *EntrySpec     `json:"entry,omitempty" yaml:"entry,omitempty"`
	Externals []ExternalSpec `json:"externals,omitempty" yaml:"externals,omitempty"`
	Globals   []GlobalSpec   `json:"globals,omitempty" yaml:"globals,omitempty"`
	Functions []FunctionSpec `json:"functions" yaml:"functions"`
}

// EntrySpec names the function explored by default and its argument types,
// written the way types.Parse reads them.
type EntrySpec struct {
	Function string   `json:"function" yaml:"function"`
	Args     []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// ExternalSpec declares a host function. An empty Returns means void.
type ExternalSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Params  []string `json:"params,omitempty" yaml:"params,omitempty"`
	Returns string   `json:"returns,omitempty" yaml:"returns,omitempty"`
}

type GlobalSpec struct {
	Name string `json:"name" yaml:"name"`
	Sort string `json:"sort" yaml:"sort"`
}

type FunctionSpec struct {
	Name   string      `json:"name" yaml:"name"`
	Params []ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`
	Blocks []BlockSpec `json:"blocks" yaml:"blocks"`
}

type ParamSpec struct {
	Name string `json:"name" yaml:"name"`
	Sort string `json:"sort" yaml:"sort"`
}

// BlockSpec is one basic block. The entry block has no Params of its own.
type BlockSpec struct {
	Name   string     `json:"name" yaml:"name"`
	Params []string   `json:"params,omitempty" yaml:"params,omitempty"`
	Body   []InstSpec `json:"body,omitempty" yaml:"body,omitempty"`
	End    EndSpec    `json:"end" yaml:"end"`
}

// InstSpec is one instruction. Which fields apply depends on Op:
//
//	string      dst text
//	int         dst value
//	bool        dst flag
//	trivial     dst item
//	record list dst
//	get         dst args[record] key|slot
//	set         args[record value] key|slot
//	lt eq add or  dst args[lhs rhs]
//	not         dst args[operand]
//	fnptr       dst target
//	call        [dst] target args
//	call_extern [dst] target args
//	call_virt   [dst] args[fnptr ...]
//	load        dst target
//	store       target args[value]
//	is_empty deref  dst args[ref]
//	comment     text
type InstSpec struct {
	Op     string   `json:"op" yaml:"op"`
	Dst    string   `json:"dst,omitempty" yaml:"dst,omitempty"`
	Args   []string `json:"args,omitempty" yaml:"args,omitempty"`
	Target string   `json:"target,omitempty" yaml:"target,omitempty"`
	Key    string   `json:"key,omitempty" yaml:"key,omitempty"`
	Slot   string   `json:"slot,omitempty" yaml:"slot,omitempty"`
	Text   string   `json:"text,omitempty" yaml:"text,omitempty"`
	Value  int64    `json:"value,omitempty" yaml:"value,omitempty"`
	Flag   bool     `json:"flag,omitempty" yaml:"flag,omitempty"`
	Item   string   `json:"item,omitempty" yaml:"item,omitempty"`
}

// EndSpec is the block terminator: exactly one field is set.
type EndSpec struct {
	Jump        *JumpSpec   `json:"jump,omitempty" yaml:"jump,omitempty"`
	Branch      *BranchSpec `json:"branch,omitempty" yaml:"branch,omitempty"`
	Return      *ReturnSpec `json:"return,omitempty" yaml:"return,omitempty"`
	Unreachable bool        `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`
}

type JumpSpec struct {
	Block string   `json:"block" yaml:"block"`
	Args  []string `json:"args,omitempty" yaml:"args,omitempty"`
}

type BranchSpec struct {
	Cond string   `json:"cond" yaml:"cond"`
	Then JumpSpec `json:"then" yaml:"then"`
	Else JumpSpec `json:"else" yaml:"else"`
}

// ReturnSpec returns Value, or nothing when Value is empty.
type ReturnSpec struct {
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Module is a loaded program with its default entry point.
type Module struct {
	Program *ir.Program

	// Entry is the default function to explore; empty when the
	// description names none.
	Entry string
	Args  []string
}
