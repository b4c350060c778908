package mimebundle

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// TypeKey identifies a value's runtime type for registry dispatch and
// for round-trip reconstruction: the defining module (package path) plus
// the type name. An empty Module is the null-module sentinel used for
// predeclared and unnamed types; it marshals as JSON null.
type TypeKey struct {
	Module string
	Name   string
}

// Wildcard as a TypeKey name matches every type within a module.
const Wildcard = "*"

// TypeKeyOf derives the TypeKey for any value. It is deterministic and
// total: nil yields the nil sentinel key, pointers resolve to their
// element type, and unnamed types fall back to their type expression.
func TypeKeyOf(v any) TypeKey {
	if v == nil {
		return TypeKey{Name: "nil"}
	}
	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	name := rt.Name()
	if name == "" {
		name = rt.String()
	}
	return TypeKey{Module: rt.PkgPath(), Name: name}
}

// String renders the key for logs and signals.
func (k TypeKey) String() string {
	if k.Module == "" {
		return k.Name
	}
	return k.Module + "." + k.Name
}

// MarshalJSON renders the wire form: a two-element array of
// module-or-null and name.
func (k TypeKey) MarshalJSON() ([]byte, error) {
	var module any
	if k.Module != "" {
		module = k.Module
	}
	return json.Marshal([2]any{module, k.Name})
}

// UnmarshalJSON parses the two-element wire form.
func (k *TypeKey) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	key, err := typeKeyFromValue(raw)
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// typeKeyFromMeta extracts the "type" record from one mimetype's
// metadata entry. Returns found=false when md is nil or carries no type
// record; a present but malformed record is an error so that validation
// fails before any decode runs.
func typeKeyFromMeta(md map[string]any) (key TypeKey, found bool, err error) {
	if md == nil {
		return TypeKey{}, false, nil
	}
	raw, ok := md["type"]
	if !ok {
		return TypeKey{}, false, nil
	}
	key, err = typeKeyFromValue(raw)
	if err != nil {
		return TypeKey{}, false, err
	}
	return key, true, nil
}

// typeKeyFromValue accepts the shapes a type record takes after JSON or
// in-process transport: a TypeKey, or a two-element sequence of
// module-or-null and name.
func typeKeyFromValue(raw any) (TypeKey, error) {
	switch t := raw.(type) {
	case TypeKey:
		return t, nil
	case *TypeKey:
		return *t, nil
	case []string:
		if len(t) != 2 {
			return TypeKey{}, fmt.Errorf("type record has %d elements, want 2", len(t))
		}
		return TypeKey{Module: t[0], Name: t[1]}, nil
	case [2]string:
		return TypeKey{Module: t[0], Name: t[1]}, nil
	case []any:
		if len(t) != 2 {
			return TypeKey{}, fmt.Errorf("type record has %d elements, want 2", len(t))
		}
		var key TypeKey
		switch m := t[0].(type) {
		case nil:
		case string:
			key.Module = m
		default:
			return TypeKey{}, fmt.Errorf("type record module is %T", t[0])
		}
		name, ok := t[1].(string)
		if !ok {
			return TypeKey{}, fmt.Errorf("type record name is %T", t[1])
		}
		key.Name = name
		return key, nil
	default:
		return TypeKey{}, fmt.Errorf("type record is %T, want a two-element sequence", raw)
	}
}
