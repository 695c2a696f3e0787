package harness

import (
	"context"
	"fmt"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (h *Harness) check(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertWorldField:
		return assertWorldField(h.world.snapshot(), a)
	case AssertFileExists:
		if !h.eng.Local().Exists(a.Name) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("save %q", a.Name), Actual: "no file"}
		}
	case AssertFileMissing:
		if h.eng.Local().Exists(a.Name) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no save %q", a.Name), Actual: "file exists"}
		}
	case AssertCloudKey:
		return h.assertCloudKey(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertWorldField(snapshot map[string]any, a Assertion) error {
	got, err := lookup(snapshot, a.Field)
	if err != nil {
		return err
	}
	if !sameValue(got, a.Equals) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Field, a.Equals),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertCloudKey reads the namespace directly, bypassing the session, so
// it also works after a sign_out step.
func (h *Harness) assertCloudKey(ctx context.Context, a Assertion) error {
	data, err := h.eng.KV().LoadAll(ctx, h.identity)
	if err != nil {
		return err
	}
	got, ok := data[a.Key]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("key %q", a.Key), Actual: "missing"}
	}
	if a.Equals != nil && !sameValue(got, a.Equals) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Key, a.Equals),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}
