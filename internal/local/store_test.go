package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/pool"
	"github.com/roach88/savekit/internal/registry"
	"github.com/roach88/savekit/internal/seal"
	"github.com/roach88/savekit/internal/wire"
)

type profile struct {
	Score  int    `save:"local"`
	Avatar []byte `save:"local"`
	Name   string
}

type enemy struct {
	HP    int     `save:"local"`
	Speed float64 `save:"local"`
	Tag   string  `save:"local,key=tag name"`
}

type settings struct {
	Volume   float64 `json:"volume"`
	Language string  `json:"language"`
}

// fakeMaterials counts fetches and fails the first failFirst of them.
type fakeMaterials struct {
	calls     atomic.Int32
	failFirst int32
}

func (f *fakeMaterials) EncryptionMaterial(ctx context.Context) (seal.Material, error) {
	n := f.calls.Add(1)
	if n <= f.failFirst {
		return seal.Material{}, errors.New("secret endpoint unavailable")
	}
	return seal.Material{Key: "test-key", IV: []byte("0123456789abcdef")}, nil
}

func newTestStore(t *testing.T, reg *registry.Registry, mutate ...func(*Options)) *Store {
	t.Helper()

	p := pool.New(pool.Options{Lanes: 2})
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })

	opts := Options{
		BaseDir:   t.TempDir(),
		Company:   "Acme",
		Product:   "Rocket",
		Registry:  reg,
		Pool:      p,
		Materials: &fakeMaterials{},
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := Open(opts)
	require.NoError(t, err)
	return s
}

func primary() context.Context {
	return registry.WithPrimary(context.Background())
}

func TestOpen_CreatesRoot(t *testing.T) {
	s := newTestStore(t, registry.New())
	assert.DirExists(t, s.Root())
	assert.Equal(t, filepath.Join("Acme", "Rocket"), filepath.Join(filepath.Base(filepath.Dir(s.Root())), filepath.Base(s.Root())))
	assert.Equal(t, filepath.Join(s.Root(), "slot1.json"), s.Path("slot1"))

	_, err := Open(Options{Company: "Acme"})
	assert.Error(t, err)
}

func TestSaveAuto_GoldenAndIdempotent(t *testing.T) {
	reg := registry.New()
	registry.MustRegister(reg, "Profile", registry.Local,
		registry.Factory(func() *profile { return &profile{Score: 42, Avatar: []byte("hi"), Name: "Rex"} }))
	enemies := []*enemy{{HP: 10, Speed: 1.5, Tag: "orc"}, {HP: 3, Speed: 0.25, Tag: "imp"}}
	registry.MustRegister(reg, "Enemy", registry.Local,
		registry.Live(func() []*enemy { return enemies }))

	s := newTestStore(t, reg)

	require.NoError(t, s.SaveAuto(primary(), "world", pool.Async).Wait())
	first, err := os.ReadFile(s.Path("world"))
	require.NoError(t, err)

	require.NoError(t, s.SaveAuto(primary(), "world", pool.Sync).Wait())
	second, err := os.ReadFile(s.Path("world"))
	require.NoError(t, err)

	assert.Equal(t, first, second, "unchanged state saves byte-identical files")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "save_auto_aggregate", second)
}

type flaky int

func (f flaky) WireValue() (wire.Value, error) {
	if f < 0 {
		return nil, errors.New("sensor offline")
	}
	return wire.Int(f), nil
}

func (f *flaky) ScanWire(v wire.Value) error {
	n, err := wire.AsInt64(v)
	if err != nil {
		return err
	}
	*f = flaky(n)
	return nil
}

type telemetry struct {
	A flaky `save:"local"`
	B flaky `save:"local"`
	C flaky `save:"local"`
	D flaky `save:"local"`
}

func TestSaveAuto_PartialFailureSkipsOneField(t *testing.T) {
	reg := registry.New()
	registry.MustRegister(reg, "Telemetry", registry.Local,
		registry.Factory(func() *telemetry { return &telemetry{A: 1, B: 2, C: -1, D: 4} }))
	s := newTestStore(t, reg)

	require.NoError(t, s.SaveAuto(context.Background(), "telemetry", pool.Async).Wait())

	data, err := os.ReadFile(s.Path("telemetry"))
	require.NoError(t, err)
	records, err := UnmarshalAggregate(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Fields, 3)
	assert.NotContains(t, records[0].Fields, "C")
}

func TestSaveAuto_NoInstances(t *testing.T) {
	s := newTestStore(t, registry.New())
	err := s.SaveAuto(context.Background(), "empty", pool.Async).Wait()
	assert.True(t, errors.Is(err, fault.ErrDiscovery))
	assert.NoFileExists(t, s.Path("empty"))
}

func TestSaveAuto_ThenTryLoad_EndToEnd(t *testing.T) {
	reg := registry.New()
	registry.MustRegister(reg, "Profile", registry.Local,
		registry.Factory(func() *profile { return &profile{Score: 42, Name: "Rex"} }))
	s := newTestStore(t, reg)
	ctx := context.Background()

	require.NoError(t, s.SaveAuto(ctx, "profile", pool.Async).Wait())

	got, err := TryLoad[profile](ctx, s, "profile", false, pool.Async).Await(ctx)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, 42, got.Value.Score)
	assert.Empty(t, got.Value.Name, "unmarked fields are not persisted")
}

type nameplate struct {
	Title string `save:"local"`
}

func TestSaveAuto_StringsRoundTripByteExact(t *testing.T) {
	const decomposed = "Cafe\u0301"
	reg := registry.New()
	registry.MustRegister(reg, "Nameplate", registry.Local,
		registry.Factory(func() *nameplate { return &nameplate{Title: decomposed} }))
	s := newTestStore(t, reg)
	ctx := context.Background()

	require.NoError(t, s.SaveAuto(ctx, "named", pool.Sync).Wait())

	got, err := TryLoad[nameplate](ctx, s, "named", false, pool.Sync).Await(ctx)
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, decomposed, got.Value.Title)
	assert.Len(t, got.Value.Title, 6)
}

func TestTryLoad_NotFound(t *testing.T) {
	s := newTestStore(t, registry.New())
	ctx := context.Background()

	got, err := TryLoad[settings](ctx, s, "missing", false, pool.Sync).Await(ctx)
	require.NoError(t, err, "loads never fail past the boundary")
	assert.False(t, got.Found)
	assert.Zero(t, got.Value)

	require.NoError(t, os.WriteFile(s.Path("corrupt"), []byte("{not json"), 0o644))
	got, err = TryLoad[settings](ctx, s, "corrupt", false, pool.Async).Await(ctx)
	require.NoError(t, err)
	assert.False(t, got.Found)
}

type explosive struct{}

func (*explosive) UnmarshalJSON([]byte) error { panic("boom") }

func TestTryLoad_NeverResolvesWithError(t *testing.T) {
	s := newTestStore(t, registry.New())
	ctx := context.Background()
	require.NoError(t, s.SaveRaw(ctx, "bomb", map[string]int{"a": 1}, pool.Sync).Wait())

	for _, mode := range []pool.Mode{pool.Sync, pool.Async} {
		got, err := TryLoad[explosive](ctx, s, "bomb", false, mode).Await(ctx)
		require.NoError(t, err, "mode %v", mode)
		assert.False(t, got.Found)
	}

	require.NoError(t, s.pool.Shutdown(time.Second))
	got, err := TryLoad[settings](ctx, s, "bomb", false, pool.Async).Await(ctx)
	require.NoError(t, err, "a closed pool reports not found")
	assert.False(t, got.Found)

	got, err = TryLoad[settings](ctx, s, "bomb", true, pool.Sync).Await(ctx)
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestTryLoad_AggregateConversionFailureIsNotFound(t *testing.T) {
	reg := registry.New()
	registry.MustRegister(reg, "Profile", registry.Local,
		registry.Factory(func() *profile { return &profile{} }))
	s := newTestStore(t, reg)
	ctx := context.Background()

	bad := `[{"type":"Profile","fields":{"Score":"forty-two"}}]`
	require.NoError(t, os.WriteFile(s.Path("profile"), []byte(bad), 0o644))

	got, err := TryLoad[profile](ctx, s, "profile", false, pool.Sync).Await(ctx)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.Zero(t, got.Value, "no partially populated values")

	other := `[{"type":"Enemy","fields":{"HP":1}}]`
	require.NoError(t, os.WriteFile(s.Path("profile"), []byte(other), 0o644))
	got, err = TryLoad[profile](ctx, s, "profile", false, pool.Sync).Await(ctx)
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestSaveRaw_TryLoad(t *testing.T) {
	s := newTestStore(t, registry.New())
	ctx := context.Background()

	want := settings{Volume: 0.8, Language: "en"}
	require.NoError(t, s.SaveRaw(ctx, "settings", want, pool.Sync).Wait())

	data, err := os.ReadFile(s.Path("settings"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"language": "en"`)

	got, err := TryLoad[settings](ctx, s, "settings", false, pool.Async).Await(ctx)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, want, got.Value)

	// Overwrite.
	require.NoError(t, s.SaveRaw(ctx, "settings", settings{Language: "fr"}, pool.Async).Wait())
	got, err = TryLoad[settings](ctx, s, "settings", false, pool.Sync).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fr", got.Value.Language)
}

func TestSaveRaw_UnmarshalableValue(t *testing.T) {
	s := newTestStore(t, registry.New())
	err := s.SaveRaw(context.Background(), "bad", map[string]any{"c": make(chan int)}, pool.Sync).Wait()
	assert.Equal(t, fault.CodeConversion, fault.CodeOf(err))
}

func TestSaveEncrypted_TryLoadEncrypted(t *testing.T) {
	materials := &fakeMaterials{}
	s := newTestStore(t, registry.New(), func(o *Options) { o.Materials = materials })
	ctx := context.Background()

	want := settings{Volume: 0.3, Language: "de"}
	require.NoError(t, s.SaveEncrypted(ctx, "secret", want).Wait())
	require.NoError(t, s.SaveEncrypted(ctx, "secret2", want).Wait())

	data, err := os.ReadFile(s.Path("secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "language")

	got, err := TryLoad[settings](ctx, s, "secret", true, pool.Sync).Await(ctx)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, want, got.Value)

	assert.Equal(t, int32(1), materials.calls.Load(), "material is fetched once")

	plain, err := TryLoad[settings](ctx, s, "secret", false, pool.Sync).Await(ctx)
	require.NoError(t, err)
	assert.False(t, plain.Found, "ciphertext is not JSON")
}

func TestSaveEncrypted_FailedFetchIsNotCached(t *testing.T) {
	materials := &fakeMaterials{failFirst: 1}
	s := newTestStore(t, registry.New(), func(o *Options) { o.Materials = materials })
	ctx := context.Background()

	err := s.SaveEncrypted(ctx, "secret", settings{}).Wait()
	require.Error(t, err)
	assert.NoFileExists(t, s.Path("secret"))

	require.NoError(t, s.SaveEncrypted(ctx, "secret", settings{}).Wait())
	assert.Equal(t, int32(2), materials.calls.Load())
}

func TestSaveEncrypted_NoMaterialSource(t *testing.T) {
	s := newTestStore(t, registry.New(), func(o *Options) { o.Materials = nil })
	err := s.SaveEncrypted(context.Background(), "secret", settings{}).Wait()
	assert.True(t, errors.Is(err, fault.ErrCrypto))
}

func TestLoadAuto_RedistributesRecords(t *testing.T) {
	reg := registry.New()
	live := []*enemy{{HP: 10, Tag: "orc"}, {HP: 3, Tag: "imp"}}
	registry.MustRegister(reg, "Enemy", registry.Local,
		registry.Live(func() []*enemy { return live }))
	s := newTestStore(t, reg)

	require.NoError(t, s.SaveAuto(primary(), "scene", pool.Sync).Wait())

	live[0].HP, live[1].HP = 0, 0
	live = append(live, &enemy{HP: 99})

	n, err := s.LoadAuto(primary(), "scene", pool.Async).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 10, live[0].HP)
	assert.Equal(t, 3, live[1].HP)
	assert.Equal(t, 99, live[2].HP, "instances without a record are left alone")
}

func TestFiles_ListCountDelete(t *testing.T) {
	s := newTestStore(t, registry.New())
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, s.SaveRaw(ctx, name, settings{}, pool.Sync).Wait())
	}
	require.NoError(t, s.SetPref("volume", 0.5))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	count, err := s.SaveCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.True(t, s.Exists("a"))
	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"), "deleting twice is fine")
	assert.False(t, s.Exists("a"))
}

func TestInvalidNames(t *testing.T) {
	s := newTestStore(t, registry.New())
	ctx := context.Background()

	for _, name := range []string{"", "..", "a/b", `a\b`, "prefs"} {
		err := s.SaveRaw(ctx, name, settings{}, pool.Sync).Wait()
		assert.Error(t, err, "name %q", name)
	}
}

func TestAtomicWrites(t *testing.T) {
	s := newTestStore(t, registry.New(), func(o *Options) { o.AtomicWrites = true })
	ctx := context.Background()

	require.NoError(t, s.SaveRaw(ctx, "slot", settings{Language: "en"}, pool.Async).Wait())

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "slot.json", entries[0].Name())
}

func TestPrefs(t *testing.T) {
	s := newTestStore(t, registry.New())

	require.NoError(t, s.SetPref("volume", 0.75))
	require.NoError(t, s.SetPref("level", 3))
	require.NoError(t, s.SetPref("player", "Ada"))
	assert.Error(t, s.SetPref("muted", true), "bool preferences are not supported")
	assert.Error(t, s.SetPref("", 1))

	vol, ok := Pref[float64](s, "volume")
	assert.True(t, ok)
	assert.Equal(t, 0.75, vol)

	lvl, ok := Pref[int](s, "level")
	assert.True(t, ok)
	assert.Equal(t, 3, lvl)

	_, ok = Pref[int](s, "player")
	assert.False(t, ok, "wrong type")
	_, ok = Pref[string](s, "missing")
	assert.False(t, ok)

	require.NoError(t, s.DeletePref("level"))
	_, ok = Pref[int](s, "level")
	assert.False(t, ok)

	data, err := os.ReadFile(filepath.Join(s.Root(), "prefs.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"player":"Ada","volume":0.75}`, string(data))
}
