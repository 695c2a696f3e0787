package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/savekit/internal/wire"
)

// snapshotJSON renders a run as canonical JSON for golden comparison.
func snapshotJSON(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"op":      ev.Op,
			"outcome": ev.Outcome,
		}
		if ev.Name != "" {
			m["name"] = ev.Name
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		trace[i] = m
	}
	return wire.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"trace":         trace,
		"world":         result.World,
	})
}

// RunWithGolden runs scenario in a temp dir and compares its trace and
// final world against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, t.TempDir())
	if err != nil {
		return nil, err
	}
	data, err := snapshotJSON(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
