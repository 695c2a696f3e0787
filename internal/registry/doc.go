// Package registry discovers live objects that opt into persistence.
//
// Types opt in by registering with a Registry, naming the persistence
// kinds (markers) they participate in and how their instances are found:
//
//	registry.MustRegister(reg, "Profile", registry.Local|registry.Cloud,
//		registry.Factory(func() *Profile { return &Profile{} }))
//
// Fields opt in individually with a struct tag. A type can opt into a
// marker while exposing only some of its fields under it:
//
//	type Profile struct {
//		Score int    `save:"local,cloud"`
//		Coins int    `save:"cloud,key=coin count"`
//		Name  string // not persisted
//	}
//
// Two acquisition strategies exist. Factory builds exactly one fresh
// instance per discovery pass and is safe from any goroutine. Live
// enumerates every live instance from a host-owned index and may only be
// visited on the primary context (see WithPrimary); visiting it from a
// worker lane is reported as a Discovery fault, never a crash.
//
// Discovery results are recomputed on every call and never cached: the
// live population may change between passes. Discovery never mutates the
// host objects.
package registry
