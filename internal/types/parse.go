package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

// Parse reads a type written the way RegisterType.String prints it:
//
//	any | runtime | null | undefined | empty | bytes | number | boolean
//	int <n> | bool <true|false> | string <quoted or bare text> | fnptr <n>
//
// String payloads are interned into arena. Records cannot be written; they
// only arise from execution.
func Parse(arena *Arena, s string) (RegisterType, error) {
	s = strings.TrimSpace(s)
	head, rest, _ := strings.Cut(s, " ")
	rest = strings.TrimSpace(rest)

	if item, ok := ir.ParseTrivialItem(head); ok && rest == "" {
		return Trivial(item), nil
	}

	switch head {
	case "any", "bytes", "number", "boolean":
		if rest != "" {
			return RegisterType{}, fmt.Errorf("type %q takes no argument", head)
		}
		switch head {
		case "bytes":
			return Bytes(), nil
		case "number":
			return Number(), nil
		case "boolean":
			return Boolean(), nil
		}
		return Any(), nil
	case "int":
		v, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return RegisterType{}, fmt.Errorf("int %q: %w", rest, err)
		}
		return Int(v), nil
	case "bool":
		v, err := strconv.ParseBool(rest)
		if err != nil {
			return RegisterType{}, fmt.Errorf("bool %q: %w", rest, err)
		}
		return Bool(v), nil
	case "string":
		payload := rest
		if strings.HasPrefix(rest, `"`) {
			unq, err := strconv.Unquote(rest)
			if err != nil {
				return RegisterType{}, fmt.Errorf("string %s: %w", rest, err)
			}
			payload = unq
		}
		return String(arena.Intern([]byte(payload))), nil
	case "fnptr":
		v, err := strconv.ParseUint(strings.TrimPrefix(rest, "@"), 10, 32)
		if err != nil {
			return RegisterType{}, fmt.Errorf("fnptr %q: %w", rest, err)
		}
		return FnPtr(id.New[id.FunctionKind, id.IR](uint32(v))), nil
	}
	return RegisterType{}, fmt.Errorf("unknown type %q", s)
}

// ParseList parses each element of ss.
func ParseList(arena *Arena, ss []string) ([]RegisterType, error) {
	out := make([]RegisterType, len(ss))
	for i, s := range ss {
		t, err := Parse(arena, s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}
