package mimebundle

import (
	"sync"
)

// Registry maps TypeKeys to codecs. Resolution order is exact match,
// then module wildcard, then the built-in fallback codec, so lookup is
// total: every value resolves to some codec.
//
// A Registry is built once at process start and is read-mostly after
// that. Registration and lookups are safe for concurrent use;
// registration writes are serialized.
type Registry struct {
	mu       sync.RWMutex
	exact    map[TypeKey]Codec
	modules  map[string]Codec
	byMime   map[string]Codec
	hooks    map[TypeKey]DecodeFunc
	fallback Codec
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithFallback replaces the built-in generic codec. The superseded
// codec's mimetype entry is removed, so only the active fallback's
// mimetype is recognized.
func WithFallback(c Codec) RegistryOption {
	return func(r *Registry) {
		delete(r.byMime, r.fallback.Mimetype())
		r.fallback = c
		r.byMime[c.Mimetype()] = c
	}
}

// NewRegistry builds a registry holding only the built-in fallback
// entry. Specialized codecs register themselves against it, e.g.
// arrowipc.Register.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		exact:    make(map[TypeKey]Codec),
		modules:  make(map[string]Codec),
		byMime:   make(map[string]Codec),
		hooks:    make(map[TypeKey]DecodeFunc),
		fallback: fallbackCodec{},
	}
	r.byMime[r.fallback.Mimetype()] = r.fallback
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates an exact TypeKey with a codec. A key whose Name is
// Wildcard registers the whole module instead.
func (r *Registry) Register(key TypeKey, c Codec) {
	if key.Name == Wildcard {
		r.RegisterModule(key.Module, c)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[key] = c
	r.byMime[c.Mimetype()] = c
}

// RegisterModule associates every type of a module with a codec.
func (r *Registry) RegisterModule(module string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[module] = c
	r.byMime[c.Mimetype()] = c
}

// RegisterDecodeHook installs a decode function dispatched on exact
// TypeKey during deserialization, ahead of the codec's default decode.
func (r *Registry) RegisterDecodeHook(key TypeKey, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[key] = fn
}

// Lookup resolves a TypeKey to a codec. Never fails: keys with no exact
// or module-wildcard entry resolve to the fallback codec.
func (r *Registry) Lookup(key TypeKey) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.exact[key]; ok {
		return c
	}
	if c, ok := r.modules[key.Module]; ok {
		return c
	}
	return r.fallback
}

// Fallback returns the built-in generic codec.
func (r *Registry) Fallback() Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Recognizes reports whether any registered codec produces mimetype.
func (r *Registry) Recognizes(mimetype string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byMime[mimetype]
	return ok
}

// decoderFor picks the decode function for a payload: the exact decode
// hook when the recorded type has one, else the default decode of the
// codec serving the mimetype.
func (r *Registry) decoderFor(key TypeKey, mimetype string, haveKey bool) (DecodeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if haveKey {
		if fn, ok := r.hooks[key]; ok {
			return fn, true
		}
	}
	c, ok := r.byMime[mimetype]
	if !ok {
		return nil, false
	}
	return c.Decode, true
}
