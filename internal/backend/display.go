package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the program in a stable text form.
func (p *Program) String() string {
	var sb strings.Builder
	for _, c := range sortedKeys(p.Constants) {
		def := p.Constants[c]
		fmt.Fprintf(&sb, "const #%s %s = %s\n", c, def.Name, strconv.Quote(string(def.Payload)))
	}
	for _, s := range sortedKeys(p.OpaqueStructs) {
		fmt.Fprintf(&sb, "opaque #%s %s\n", s, p.OpaqueStructs[s].Name)
	}
	for _, e := range sortedKeys(p.Externals) {
		ext := p.Externals[e]
		params := make([]string, len(ext.Params))
		for i, t := range ext.Params {
			params[i] = t.String()
		}
		fmt.Fprintf(&sb, "declare &%s %s(%s) -> %s\n", e, ext.Name, strings.Join(params, ", "), ext.Returns)
	}
	for _, f := range p.SortedFunctions() {
		fn := p.Functions[f]
		params := make([]string, len(fn.Params))
		for i, prm := range fn.Params {
			params[i] = fmt.Sprintf("%%%s: %s", prm.Register, prm.Type)
		}
		fmt.Fprintf(&sb, "\ndefine %s @%s %s(%s) -> %s {\n", fn.Linkage, f, fn.Name, strings.Join(params, ", "), fn.Returns)
		for _, b := range fn.SortedBlocks() {
			fmt.Fprintf(&sb, "$%s:\n", b)
			for _, inst := range fn.Blocks[b] {
				fmt.Fprintf(&sb, "  %s\n", inst)
			}
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}
