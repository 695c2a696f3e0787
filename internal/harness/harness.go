package harness

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/roach88/savekit/internal/config"
	"github.com/roach88/savekit/internal/engine"
	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/local"
	"github.com/roach88/savekit/internal/logging"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
)

// DefaultIdentity is used when a scenario names none.
const DefaultIdentity = "scenario-player"

// Fixed encryption material served to every run.
const (
	materialKey = "harness-key"
	materialIV  = "0123456789abcdef"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Name    string `json:"name,omitempty"`
	Outcome string `json:"outcome"` // "ok" or the error code
	Detail  string `json:"detail,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// World is the final world snapshot.
	World map[string]any `json:"world"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Harness holds the per-run engine and world.
type Harness struct {
	eng      *engine.Engine
	world    *World
	identity string
}

// outcome is what a step produced besides its error.
type outcome struct {
	count int
	found bool
}

// Run executes scenario with all state under dir.
//
// Execution flow:
// 1. Build the world and register it on a fresh registry
// 2. Start an engine signed in as the scenario identity
// 3. Execute steps on the primary context, checking expectations
// 4. Evaluate assertions and snapshot the world
func Run(scenario *Scenario, dir string) (*Result, error) {
	identity := scenario.Identity
	if identity == "" {
		identity = DefaultIdentity
	}

	world := newWorld(scenario.World)
	reg := registry.New(registry.WithLogger(logging.Discard()))
	if err := world.register(reg); err != nil {
		return nil, fmt.Errorf("register world: %w", err)
	}

	cfg := config.Defaults()
	cfg.BaseDir = dir
	cfg.Company = "harness"
	cfg.Product = "scenario"
	cfg.Lanes = 2
	cfg.ShutdownGrace = config.Duration(5 * time.Second)
	cfg.Mode = pool.Sync.String()
	cfg.Identity = identity
	cfg.Secrets.Key = materialKey
	cfg.Secrets.IV = base64.StdEncoding.EncodeToString([]byte(materialIV))

	ctx := registry.WithPrimary(context.Background())
	eng, err := engine.New(ctx, cfg, engine.WithRegistry(reg), engine.WithLogger(logging.Discard()))
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	defer eng.Close(context.Background())

	h := &Harness{eng: eng, world: world, identity: identity}
	result := NewResult()

	for i, step := range scenario.Steps {
		out, err := h.execute(ctx, step)
		event := TraceEvent{Step: i + 1, Op: step.Op, Name: step.Name, Outcome: "ok", Detail: detail(step.Op, out)}
		if err != nil {
			event.Outcome = errorCode(err)
			event.Detail = ""
		}
		result.Trace = append(result.Trace, event)
		checkExpect(result, i, step, out, err)
	}

	for i, a := range scenario.Assertions {
		if err := h.check(ctx, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	result.World = world.snapshot()
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) (outcome, error) {
	st := h.eng.Local()
	cl := h.eng.Cloud()

	switch step.Op {
	case OpSaveAuto:
		return outcome{}, st.SaveAuto(ctx, step.Name, pool.Sync).Wait()
	case OpLoadAuto:
		n, err := st.LoadAuto(ctx, step.Name, pool.Sync).Await(ctx)
		return outcome{count: n}, err
	case OpSaveEncrypted:
		return outcome{}, st.SaveEncrypted(ctx, step.Name, step.Value).Wait()
	case OpLoadEncrypted:
		got, err := local.TryLoad[map[string]any](ctx, st, step.Name, true, pool.Sync).Await(ctx)
		return outcome{found: got.Found}, err
	case OpDelete:
		return outcome{}, st.Delete(step.Name)
	case OpReset:
		h.world.reset()
		return outcome{}, nil
	case OpCloudSave:
		return outcome{}, cl.SaveToCloud(ctx).Wait()
	case OpCloudLoad:
		data, err := cl.LoadFromCloud(ctx).Await(ctx)
		return outcome{count: len(data)}, err
	case OpCloudApply:
		n, err := cl.ApplyLoaded(ctx)
		return outcome{count: n}, err
	case OpCloudDelete:
		return outcome{}, cl.DeleteAll(ctx).Wait()
	case OpSignIn:
		return outcome{}, h.eng.Session().SignInAs(ctx, h.identity)
	case OpSignOut:
		return outcome{}, h.eng.Session().SignOut(ctx)
	default:
		return outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

func detail(op string, out outcome) string {
	switch op {
	case OpLoadAuto, OpCloudApply:
		return fmt.Sprintf("written=%d", out.count)
	case OpCloudLoad:
		return fmt.Sprintf("keys=%d", out.count)
	case OpLoadEncrypted:
		return fmt.Sprintf("found=%t", out.found)
	default:
		return ""
	}
}

func errorCode(err error) string {
	if code := fault.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func checkExpect(result *Result, i int, step Step, out outcome, err error) {
	prefix := fmt.Sprintf("steps[%d] %s", i, step.Op)
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	switch {
	case exp.Error != "" && err == nil:
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", prefix, exp.Error))
		return
	case exp.Error != "":
		if got := errorCode(err); got != exp.Error {
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", prefix, exp.Error, got, err))
		}
		return
	case err != nil:
		result.AddError(fmt.Sprintf("%s: %v", prefix, err))
		return
	}

	if exp.Written != nil && *exp.Written != out.count {
		result.AddError(fmt.Sprintf("%s: expected %d fields written, got %d", prefix, *exp.Written, out.count))
	}
	if exp.Keys != nil && *exp.Keys != out.count {
		result.AddError(fmt.Sprintf("%s: expected %d keys, got %d", prefix, *exp.Keys, out.count))
	}
	if exp.Found != nil && *exp.Found != out.found {
		result.AddError(fmt.Sprintf("%s: expected found=%t, got %t", prefix, *exp.Found, out.found))
	}
}
