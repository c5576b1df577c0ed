package assembler

import (
	"fmt"
	"strings"
)

// String renders the program in a stable text form, used by golden tests
// and the CLI.
func (p *Program) String() string {
	var sb strings.Builder
	for _, c := range sortedKeys(p.Constants) {
		fmt.Fprintf(&sb, "const #%s = %s\n", c, quote(p.Constants[c]))
	}
	for _, g := range sortedKeys(p.Globals) {
		decl := p.Globals[g]
		fmt.Fprintf(&sb, "global ^%s %s: %s\n", g, decl.Name, decl.Sort)
	}
	for _, e := range sortedKeys(p.Externals) {
		decl := p.Externals[e]
		params := make([]string, len(decl.Params))
		for i, t := range decl.Params {
			params[i] = string(t)
		}
		ret := string(decl.Returns)
		if decl.IsVoid() {
			ret = "void"
		}
		fmt.Fprintf(&sb, "extern &%s %s(%s) -> %s\n", e, decl.Name, strings.Join(params, ", "), ret)
	}
	if len(p.Entries) > 0 {
		names := make([]string, len(p.Entries))
		for i, f := range p.Entries {
			names[i] = "@" + f.String()
		}
		fmt.Fprintf(&sb, "entry %s\n", strings.Join(names, ", "))
	}
	for _, f := range p.SortedFunctions() {
		sb.WriteString("\n")
		p.Functions[f].write(&sb, f)
	}
	return sb.String()
}

func (f *Func) write(sb *strings.Builder, fid Function) {
	fmt.Fprintf(sb, "; %s\n", f.Signature)
	fmt.Fprintf(sb, "fn @%s %s(%s) -> %s {\n", fid, f.Name, paramList(f.Params()), f.Returns)
	for _, b := range f.SortedBlocks() {
		blk := f.Blocks[b]
		fmt.Fprintf(sb, "$%s(%s):\n", b, paramList(blk.Params))
		for _, inst := range blk.Instructions {
			fmt.Fprintf(sb, "  %s\n", inst)
		}
		if blk.End != nil {
			fmt.Fprintf(sb, "  %s\n", blk.End)
		}
	}
	sb.WriteString("}\n")
}

func paramList(ps []Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("%s: %s", reg(p.Register), p.Type)
	}
	return strings.Join(parts, ", ")
}
