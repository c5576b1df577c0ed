package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the program in a stable text form.
func (p *Program) String() string {
	var sb strings.Builder
	for _, c := range p.SortedConstants() {
		fmt.Fprintf(&sb, "const #%s = %s\n", c, strconv.Quote(string(p.Constants[c])))
	}
	for _, g := range p.SortedGlobals() {
		decl := p.Globals[g]
		fmt.Fprintf(&sb, "global ^%s %s: %s\n", g, decl.Name, decl.Sort)
	}
	for _, e := range p.SortedExternals() {
		decl := p.Externals[e]
		params := make([]string, len(decl.Params))
		for i, t := range decl.Params {
			params[i] = string(t)
		}
		ret := decl.Returns
		if ret == "" {
			ret = FFIVoid
		}
		fmt.Fprintf(&sb, "extern &%s %s(%s) -> %s\n", e, decl.Name, strings.Join(params, ", "), ret)
	}
	for _, f := range p.SortedFunctions() {
		sb.WriteString("\n")
		writeFunc(&sb, f, p.Functions[f])
	}
	return sb.String()
}

func writeFunc(sb *strings.Builder, f Function, fn *Func) {
	sorts := make([]string, len(fn.ParamSorts))
	for i, s := range fn.ParamSorts {
		sorts[i] = string(s)
	}
	fmt.Fprintf(sb, "fn @%s %s(%s) entry $%s {\n", f, fn.Name, strings.Join(sorts, ", "), fn.Entry)
	for _, b := range fn.SortedBlocks() {
		blk := fn.Blocks[b]
		fmt.Fprintf(sb, "$%s(%s):\n", b, regList(blk.Params))
		for _, inst := range blk.Instructions {
			fmt.Fprintf(sb, "  %s\n", inst)
		}
		if blk.End != nil {
			fmt.Fprintf(sb, "  %s\n", blk.End)
		}
	}
	sb.WriteString("}\n")
}
