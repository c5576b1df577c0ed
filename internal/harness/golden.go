package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/NinoDS/jssat/internal/canon"
)

// TraceSnapshot captures the observable result of a scenario.
type TraceSnapshot struct {
	ScenarioName string
	Status       string
	Outcome      string
	ErrorCode    string
	Trace        []TraceEvent
}

// toCanonical converts the snapshot to canon values. Empty strings are
// omitted.
func (s *TraceSnapshot) toCanonical() canon.Object {
	trace := make(canon.Array, len(s.Trace))
	for i, event := range s.Trace {
		m := canon.Object{
			"seq":        event.Seq,
			"function":   event.Function,
			"signature":  event.Signature,
			"outcome":    event.Outcome,
			"iterations": event.Iterations,
		}
		if event.Assembled != "" {
			m["assembled"] = event.Assembled
		}
		trace[i] = m
	}

	out := canon.Object{
		"scenario_name": s.ScenarioName,
		"status":        s.Status,
		"trace":         trace,
	}
	if s.Outcome != "" {
		out["outcome"] = s.Outcome
	}
	if s.ErrorCode != "" {
		out["error_code"] = s.ErrorCode
	}
	return out
}

// Snapshot renders result as canonical JSON.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	if result.Run != nil {
		snap.Status = result.Run.Status
		snap.Outcome = result.Run.Outcome
		snap.ErrorCode = result.Run.ErrorCode
	}
	return canon.Marshal(snap.toCanonical())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass; returns an error only if
// the scenario could not run.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
