package objgraph

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zoobzio/sentinel"
)

// typePlan caches everything the encoder and decoder need for a named
// type: the reflect.Type for reconstruction and, for structs, the
// exported field access plan.
type typePlan struct {
	rt     reflect.Type
	fields []fieldPlan
}

// fieldPlan describes one exported struct field.
type fieldPlan struct {
	name  string
	index []int
}

var (
	regMu  sync.RWMutex
	byName = make(map[string]*typePlan)
	byType = make(map[reflect.Type]string)
)

// Register makes the named type T encodable and decodable. Struct field
// plans are scanned once at registration and cached. Registering the
// same type twice is a no-op.
func Register[T any]() {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Struct {
		registerPlan(defaultName(rt), rt, scanFields[T]())
		return
	}
	registerPlan(defaultName(rt), rt, nil)
}

// RegisterName registers rt under an explicit name. Use this when the
// default package-qualified name must stay stable across refactors, or
// when the type is only available as a reflect.Type.
func RegisterName(name string, rt reflect.Type) error {
	if name == "" {
		return fmt.Errorf("objgraph: empty registration name")
	}
	if rt.Name() == "" {
		return fmt.Errorf("objgraph: cannot register unnamed type %s", rt.String())
	}
	var fields []fieldPlan
	if rt.Kind() == reflect.Struct {
		fields = reflectFields(rt)
	}
	registerPlan(name, rt, fields)
	return nil
}

func registerPlan(name string, rt reflect.Type, fields []fieldPlan) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := byName[name]; ok {
		return
	}
	byName[name] = &typePlan{rt: rt, fields: fields}
	byType[rt] = name
}

// defaultName is the package-qualified type name, e.g.
// "github.com/acme/shop.Order".
func defaultName(rt reflect.Type) string {
	if rt.PkgPath() == "" {
		return rt.Name()
	}
	return rt.PkgPath() + "." + rt.Name()
}

func lookupName(rt reflect.Type) (string, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	name, ok := byType[rt]
	return name, ok
}

func lookupPlan(name string) (*typePlan, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	plan, ok := byName[name]
	return plan, ok
}

// scanFields builds a struct field plan from sentinel's type metadata.
// Only exported fields are planned.
func scanFields[T any]() []fieldPlan {
	rt := reflect.TypeFor[T]()
	spec := sentinel.Scan[T]()
	fields := make([]fieldPlan, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		if sf, ok := rt.FieldByName(f.Name); !ok || !sf.IsExported() {
			continue
		}
		fields = append(fields, fieldPlan{name: f.Name, index: f.Index})
	}
	return fields
}

// reflectFields builds a struct field plan directly from reflection, for
// registrations that arrive without a static type parameter.
func reflectFields(rt reflect.Type) []fieldPlan {
	fields := make([]fieldPlan, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fields = append(fields, fieldPlan{name: sf.Name, index: sf.Index})
	}
	return fields
}

// Reset clears the type registry.
// This is primarily useful for test isolation.
func Reset() {
	regMu.Lock()
	defer regMu.Unlock()
	byName = make(map[string]*typePlan)
	byType = make(map[reflect.Type]string)
}
