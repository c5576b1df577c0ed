package frontend

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// LoadFile loads a description, choosing the format by extension: .cue
// for CUE, .yaml, .yml and .json for YAML.
func LoadFile(path string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(src, path)
	case ".yaml", ".yml", ".json":
		return LoadYAML(src)
	}
	return nil, fmt.Errorf("read program: unsupported file extension %q", filepath.Ext(path))
}

// LoadCUE compiles a CUE description. filename is used in positions only.
func LoadCUE(src []byte, filename string) (*Module, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("program schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	raw := v
	v = schema.LookupPath(cue.ParsePath("#Program")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var spec ProgramSpec
	if err := v.Decode(&spec); err != nil {
		return nil, formatCUEError(err)
	}

	mod, err := Compile(&spec)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) && !ce.Pos.IsValid() {
			ce.Pos = position(raw, ce.Field)
		}
		return nil, err
	}
	return mod, nil
}

// position returns the source position of the element at field, or of its
// nearest enclosing element that has one.
func position(v cue.Value, field string) token.Pos {
	for field != "" {
		p := cue.ParsePath(field)
		if p.Err() == nil {
			if el := v.LookupPath(p); el.Exists() && el.Pos().IsValid() {
				return el.Pos()
			}
		}
		i := strings.LastIndexAny(field, ".[")
		if i < 0 {
			break
		}
		field = field[:i]
	}
	return v.Pos()
}

// LoadYAML compiles a YAML (or JSON) description. Unknown fields are
// rejected.
func LoadYAML(src []byte) (*Module, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var spec ProgramSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CompileError{Field: "yaml", Message: "empty document"}
		}
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}
	return Compile(&spec)
}
