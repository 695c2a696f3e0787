package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of persistence operations over a fixed world.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Identity is the signed-in identity. Defaults to "scenario-player".
	Identity string `yaml:"identity,omitempty"`

	// World is the initial host state.
	World WorldSpec `yaml:"world"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the state after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// WorldSpec seeds the world objects.
type WorldSpec struct {
	Profile ProfileSpec `yaml:"profile"`
	Enemies []EnemySpec `yaml:"enemies,omitempty"`
}

// ProfileSpec seeds the Profile. Avatar is plain text stored as bytes.
type ProfileSpec struct {
	Score  int    `yaml:"score"`
	Coins  int    `yaml:"coins"`
	Avatar string `yaml:"avatar"`
	Title  string `yaml:"title"`
}

// EnemySpec seeds one Enemy.
type EnemySpec struct {
	HP    int     `yaml:"hp"`
	Speed float64 `yaml:"speed"`
	Tag   string  `yaml:"tag"`
}

// Step is one operation.
type Step struct {
	// Op is the operation name, see the package documentation.
	Op string `yaml:"op"`

	// Name is the local save name for local operations.
	Name string `yaml:"name,omitempty"`

	// Value is the payload of save_encrypted.
	Value map[string]any `yaml:"value,omitempty"`

	// Expect validates the step outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step outcome.
type Expect struct {
	// Error is the expected error code, e.g. NOT_AUTHENTICATED.
	Error string `yaml:"error,omitempty"`

	// Written is the expected field count of load_auto and cloud_apply.
	Written *int `yaml:"written,omitempty"`

	// Keys is the expected key count of cloud_load.
	Keys *int `yaml:"keys,omitempty"`

	// Found is the expected outcome of load_encrypted.
	Found *bool `yaml:"found,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of world_field, file_exists, file_missing, cloud_key.
	Type string `yaml:"type"`

	// Field is a dotted world path (world_field), e.g. enemies.0.hp.
	Field string `yaml:"field,omitempty"`

	// Name is the local save name (file_exists, file_missing).
	Name string `yaml:"name,omitempty"`

	// Key is the remote key (cloud_key).
	Key string `yaml:"key,omitempty"`

	// Equals is the expected value (world_field, cloud_key). For
	// cloud_key a nil Equals only checks presence.
	Equals any `yaml:"equals,omitempty"`
}

// Assertion type constants.
const (
	AssertWorldField  = "world_field"
	AssertFileExists  = "file_exists"
	AssertFileMissing = "file_missing"
	AssertCloudKey    = "cloud_key"
)

// Operation names.
const (
	OpSaveAuto      = "save_auto"
	OpLoadAuto      = "load_auto"
	OpSaveEncrypted = "save_encrypted"
	OpLoadEncrypted = "load_encrypted"
	OpDelete        = "delete"
	OpReset         = "reset"
	OpCloudSave     = "cloud_save"
	OpCloudLoad     = "cloud_load"
	OpCloudApply    = "cloud_apply"
	OpCloudDelete   = "cloud_delete"
	OpSignIn        = "sign_in"
	OpSignOut       = "sign_out"
)

var localOps = map[string]bool{
	OpSaveAuto:      true,
	OpLoadAuto:      true,
	OpSaveEncrypted: true,
	OpLoadEncrypted: true,
	OpDelete:        true,
}

var otherOps = map[string]bool{
	OpReset:       true,
	OpCloudSave:   true,
	OpCloudLoad:   true,
	OpCloudApply:  true,
	OpCloudDelete: true,
	OpSignIn:      true,
	OpSignOut:     true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case localOps[step.Op]:
			if step.Name == "" {
				return fmt.Errorf("steps[%d]: name is required for %s", i, step.Op)
			}
		case otherOps[step.Op]:
		case step.Op == "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Op == OpSaveEncrypted && step.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for save_encrypted", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertWorldField:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for world_field", index)
		}
	case AssertFileExists, AssertFileMissing:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for %s", index, a.Type)
		}
	case AssertCloudKey:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for cloud_key", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
