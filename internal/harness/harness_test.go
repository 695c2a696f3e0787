package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_CloudRoundTripGolden(t *testing.T) {
	s := loadTestScenario(t, "cloud_round_trip")

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_LocalRoundTrip(t *testing.T) {
	s := loadTestScenario(t, "local_round_trip")

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "written=9", result.Trace[2].Detail)
	assert.Equal(t, "IO", result.Trace[3].Outcome)
}

func TestRun_EncryptedSave(t *testing.T) {
	s := loadTestScenario(t, "encrypted_save")

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "found=true", result.Trace[1].Detail)
	assert.Equal(t, "found=false", result.Trace[3].Detail)
}

func TestRun_UnmetExpectationsFail(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
description: every expectation here is wrong
world:
  profile: { score: 1 }
steps:
  - op: cloud_load
  - op: cloud_save
    expect: { error: NOT_AUTHENTICATED }
  - op: cloud_load
    expect: { keys: 5 }
assertions:
  - type: world_field
    field: profile.score
    equals: 2
  - type: file_exists
    name: nothing
  - type: cloud_key
    key: Title
    equals: Boss
`))
	require.NoError(t, err)

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "steps[0] cloud_load")
	assert.Contains(t, result.Errors[1], "expected error NOT_AUTHENTICATED, got success")
	assert.Contains(t, result.Errors[2], "expected 5 keys, got 3")
	assert.Contains(t, result.Errors[3], "profile.score = 2")
	assert.Contains(t, result.Errors[4], "file_exists")
	assert.Contains(t, result.Errors[5], "Title = Boss")

	assert.Equal(t, "NO_DATA", result.Trace[0].Outcome)
}

func TestRun_DefaultIdentity(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: default_identity
description: scenarios without an identity still sign in
world:
  profile: { score: 5, title: Ace }
steps:
  - op: cloud_save
assertions:
  - type: cloud_key
    key: Score
    equals: 5
  - type: cloud_key
    key: Title
`))
	require.NoError(t, err)

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
