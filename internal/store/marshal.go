package store

import (
	"encoding/json"
	"fmt"

	"github.com/NinoDS/jssat/internal/canon"
)

// marshalArgs renders an argument type list as canonical JSON TEXT.
func marshalArgs(args []string) (string, error) {
	data, err := canon.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// marshalOptions renders run options as a canonical JSON object.
func marshalOptions(o Options) (string, error) {
	data, err := canon.Marshal(canon.Object{
		"max_depth": o.MaxDepth,
		"max_steps": o.MaxSteps,
		"policy":    o.Policy,
	})
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(data), nil
}

func unmarshalArgs(data string) ([]string, error) {
	args := []string{}
	if data == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

func unmarshalOptions(data string) (Options, error) {
	var raw struct {
		Policy   string `json:"policy"`
		MaxSteps int    `json:"max_steps"`
		MaxDepth int    `json:"max_depth"`
	}
	if data == "" {
		return Options{}, nil
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return Options{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return Options{Policy: raw.Policy, MaxSteps: raw.MaxSteps, MaxDepth: raw.MaxDepth}, nil
}
