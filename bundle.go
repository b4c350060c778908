package mimebundle

import (
	"context"
	"time"
)

// Formatter is the host's display-formatting capability: given a value
// and optional include/exclude mimetype filters, it returns whatever
// representations the host's registered renderers produce. It may
// legitimately return empty maps when no renderer is active.
type Formatter interface {
	Format(v any, include, exclude []string) (data map[string]any, metadata map[string]any)
}

// Bundle wraps one value for the duration of one rendering request,
// adding the binary transport representation to the host's own
// representations. Composed at the call site, so the augmentation is
// opt-in and leaves the wrapped value's type untouched.
type Bundle struct {
	obj  any
	reg  *Registry
	host Formatter
}

// BundleOption configures a Bundle.
type BundleOption func(*Bundle)

// WithFormatter sets the host display-formatting capability to delegate
// to. Without it, rendering starts from an empty bundle.
func WithFormatter(f Formatter) BundleOption {
	return func(b *Bundle) {
		b.host = f
	}
}

// Wrap prepares v for display-bundle rendering against reg.
func Wrap(v any, reg *Registry, opts ...BundleOption) *Bundle {
	b := &Bundle{obj: v, reg: reg}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Render produces the display bundle: the host formatter's output, plus
// the binary payload and its type metadata under the value's transport
// mimetype when that mimetype passes the include/exclude filters.
//
// Serialization failure is swallowed here, and only here: a broken
// binary representation must never prevent the plain representations
// from being returned. The failure is reported on the render-complete
// signal.
func (b *Bundle) Render(ctx context.Context, include, exclude []string) (map[string]any, map[string]any) {
	var data, metadata map[string]any
	if b.host != nil {
		data, metadata = b.host.Format(b.obj, include, exclude)
	}
	if data == nil {
		data = make(map[string]any)
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}

	key := TypeKeyOf(b.obj)
	mimetype := b.reg.Lookup(key).Mimetype()
	if !selected(mimetype, include, exclude) {
		return data, metadata
	}

	start := time.Now()
	emitRenderStart(ctx, mimetype, key.String())

	payload, mimetype, err := Serialize(ctx, b.obj, b.reg)
	emitRenderComplete(ctx, mimetype, key.String(), time.Since(start), err)
	if err != nil {
		return data, metadata
	}

	data[mimetype] = payload
	metadata[mimetype] = map[string]any{"type": key}
	return data, metadata
}

// selected applies the include filter, then the exclude filter.
func selected(mimetype string, include, exclude []string) bool {
	if len(include) > 0 && !contains(include, mimetype) {
		return false
	}
	return !contains(exclude, mimetype)
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
