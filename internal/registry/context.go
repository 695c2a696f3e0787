package registry

import "context"

type primaryKey struct{}

// WithPrimary marks ctx as the primary execution context, the only one
// allowed to visit Live acquirers. Worker lanes never carry this mark.
func WithPrimary(ctx context.Context) context.Context {
	return context.WithValue(ctx, primaryKey{}, true)
}

// IsPrimary reports whether ctx was marked by WithPrimary.
func IsPrimary(ctx context.Context) bool {
	v, _ := ctx.Value(primaryKey{}).(bool)
	return v
}
