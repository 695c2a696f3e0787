package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/wire"
)

// Profile is the player profile host object.
type Profile struct {
	Score  int    `save:"local,cloud"`
	Coins  int    `save:"cloud,key=coin count"`
	Avatar []byte `save:"local"`
	Title  string `save:"local,cloud"`
}

// Enemy is a scene object; a world holds any number of them.
type Enemy struct {
	HP    int     `save:"local"`
	Speed float64 `save:"local"`
	Tag   string  `save:"local,key=tag name"`
}

// World is the host state a scenario runs against.
type World struct {
	Profile *Profile
	Enemies []*Enemy
}

func newWorld(spec WorldSpec) *World {
	w := &World{
		Profile: &Profile{
			Score:  spec.Profile.Score,
			Coins:  spec.Profile.Coins,
			Avatar: []byte(spec.Profile.Avatar),
			Title:  spec.Profile.Title,
		},
	}
	for _, e := range spec.Enemies {
		w.Enemies = append(w.Enemies, &Enemy{HP: e.HP, Speed: e.Speed, Tag: e.Tag})
	}
	return w
}

// register adds the world's types to reg as live types.
func (w *World) register(reg *registry.Registry) error {
	if err := registry.Register(reg, "Profile", registry.Local|registry.Cloud,
		registry.Live(func() []*Profile { return []*Profile{w.Profile} })); err != nil {
		return err
	}
	return registry.Register(reg, "Enemy", registry.Local,
		registry.Live(func() []*Enemy { return w.Enemies }))
}

// reset zeroes every object in place, keeping identities.
func (w *World) reset() {
	*w.Profile = Profile{}
	for _, e := range w.Enemies {
		*e = Enemy{}
	}
}

// snapshot renders the world as canonical-JSON-ready values.
func (w *World) snapshot() map[string]any {
	enemies := make([]any, len(w.Enemies))
	for i, e := range w.Enemies {
		enemies[i] = map[string]any{
			"hp":    wire.Int(e.HP),
			"speed": wire.Float(e.Speed),
			"tag":   wire.String(e.Tag),
		}
	}
	return map[string]any{
		"profile": map[string]any{
			"score":  wire.Int(w.Profile.Score),
			"coins":  wire.Int(w.Profile.Coins),
			"avatar": wire.String(w.Profile.Avatar),
			"title":  wire.String(w.Profile.Title),
		},
		"enemies": enemies,
	}
}

// lookup resolves a dotted path such as "profile.score" or "enemies.0.hp".
func lookup(snapshot map[string]any, path string) (wire.Value, error) {
	var cur any = snapshot
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("no field %q in %q", part, path)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("%q descends into a scalar", path)
		}
	}
	v, ok := cur.(wire.Value)
	if !ok {
		return nil, fmt.Errorf("%q is not a scalar", path)
	}
	return v, nil
}

// sameValue compares a stored value with a YAML literal. Numbers compare
// by value regardless of int or float representation.
func sameValue(actual wire.Value, expected any) bool {
	want, err := wire.ToWire(expected)
	if err != nil {
		return false
	}
	a, aErr := wire.AsFloat64(actual)
	b, bErr := wire.AsFloat64(want)
	if aErr == nil && bErr == nil && isNumber(actual) && isNumber(want) {
		return a == b
	}
	return wire.Equal(actual, want)
}

func isNumber(v wire.Value) bool {
	k := v.Kind()
	return k == wire.KindInt || k == wire.KindFloat
}
