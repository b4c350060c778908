package objgraph

import (
	"fmt"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode reconstructs the value serialized by Encode. The payload is
// self-describing; no external type metadata is needed. Reference
// identity is restored: nodes that were shared on encode decode to the
// same instance, so self-references point back at the decoded container
// itself.
func Decode(b []byte) (any, error) {
	var g wireGraph
	if err := msgpack.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(g.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty node table", ErrCorrupt)
	}

	d := &decoder{
		g:        &g,
		types:    make([]reflect.Type, len(g.Types)),
		resolved: make([]bool, len(g.Types)),
		vals:     make([]reflect.Value, len(g.Nodes)),
		done:     make([]bool, len(g.Nodes)),
	}
	v, err := d.value(g.Root)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

type decoder struct {
	g        *wireGraph
	types    []reflect.Type
	resolved []bool
	vals     []reflect.Value
	done     []bool
}

// scalarTypes maps wire scalar names back to predeclared types.
var scalarTypes = map[string]reflect.Type{
	"bool":     reflect.TypeOf(false),
	"int":      reflect.TypeOf(int(0)),
	"int8":     reflect.TypeOf(int8(0)),
	"int16":    reflect.TypeOf(int16(0)),
	"int32":    reflect.TypeOf(int32(0)),
	"int64":    reflect.TypeOf(int64(0)),
	"uint":     reflect.TypeOf(uint(0)),
	"uint8":    reflect.TypeOf(uint8(0)),
	"uint16":   reflect.TypeOf(uint16(0)),
	"uint32":   reflect.TypeOf(uint32(0)),
	"uint64":   reflect.TypeOf(uint64(0)),
	"uintptr":  reflect.TypeOf(uintptr(0)),
	"float32":  reflect.TypeOf(float32(0)),
	"float64":  reflect.TypeOf(float64(0)),
	"string":   reflect.TypeOf(""),
	"struct{}": reflect.TypeOf(struct{}{}),
}

func (d *decoder) resolveType(i int32) (reflect.Type, error) {
	if i < 0 || int(i) >= len(d.g.Types) {
		return nil, fmt.Errorf("%w: type index %d out of range", ErrCorrupt, i)
	}
	if d.resolved[i] {
		return d.types[i], nil
	}

	wt := d.g.Types[i]
	var rt reflect.Type
	switch wt.Kind {
	case kindNil, kindAny:
		rt = anyType
	case kindScalar:
		st, ok := scalarTypes[wt.Name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown scalar type %q", ErrCorrupt, wt.Name)
		}
		rt = st
	case kindBytes:
		rt = bytesType
	case kindTime:
		rt = timeType
	case kindSlice:
		elem, err := d.resolveType(wt.Elem)
		if err != nil {
			return nil, err
		}
		rt = reflect.SliceOf(elem)
	case kindArray:
		elem, err := d.resolveType(wt.Elem)
		if err != nil {
			return nil, err
		}
		rt = reflect.ArrayOf(wt.Len, elem)
	case kindMap:
		key, err := d.resolveType(wt.Key)
		if err != nil {
			return nil, err
		}
		elem, err := d.resolveType(wt.Elem)
		if err != nil {
			return nil, err
		}
		rt = reflect.MapOf(key, elem)
	case kindPointer:
		elem, err := d.resolveType(wt.Elem)
		if err != nil {
			return nil, err
		}
		rt = reflect.PointerTo(elem)
	case kindNamed:
		plan, ok := lookupPlan(wt.Name)
		if !ok {
			return nil, &TypeError{Err: ErrUnregistered, TypeName: wt.Name}
		}
		rt = plan.rt
	default:
		return nil, fmt.Errorf("%w: unknown type kind %d", ErrCorrupt, wt.Kind)
	}

	d.types[i] = rt
	d.resolved[i] = true
	return rt, nil
}

// value decodes the node at id. Containers are allocated and memoized
// before their children are filled, so a child that points back at an
// ancestor resolves to the ancestor instance already under construction.
func (d *decoder) value(id int32) (reflect.Value, error) {
	if id < 0 || int(id) >= len(d.g.Nodes) {
		return reflect.Value{}, fmt.Errorf("%w: node index %d out of range", ErrCorrupt, id)
	}
	if d.done[id] {
		return d.vals[id], nil
	}

	node := d.g.Nodes[id]
	rt, err := d.resolveType(node.Type)
	if err != nil {
		return reflect.Value{}, err
	}

	if node.Nil {
		var v reflect.Value
		if rt != anyType {
			v = reflect.Zero(rt)
		}
		d.memo(id, v)
		return v, nil
	}

	switch rt.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String:
		v, err := coerceScalar(rt, node.Scalar)
		if err != nil {
			return reflect.Value{}, err
		}
		d.memo(id, v)
		return v, nil

	case reflect.Slice:
		if isByteSlice(rt) {
			raw, ok := node.Scalar.([]byte)
			if !ok {
				return reflect.Value{}, fmt.Errorf("%w: byte payload is %T", ErrCorrupt, node.Scalar)
			}
			v := reflect.ValueOf(append([]byte(nil), raw...)).Convert(rt)
			d.memo(id, v)
			return v, nil
		}
		n := len(node.Elems)
		v := reflect.MakeSlice(rt, n, n)
		d.memo(id, v)
		for i, cid := range node.Elems {
			child, err := d.value(cid)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := setValue(v.Index(i), child); err != nil {
				return reflect.Value{}, err
			}
		}
		return v, nil

	case reflect.Array:
		v := reflect.New(rt).Elem()
		for i, cid := range node.Elems {
			if i >= rt.Len() {
				return reflect.Value{}, fmt.Errorf("%w: array node has %d elements, type holds %d", ErrCorrupt, len(node.Elems), rt.Len())
			}
			child, err := d.value(cid)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := setValue(v.Index(i), child); err != nil {
				return reflect.Value{}, err
			}
		}
		d.memo(id, v)
		return v, nil

	case reflect.Map:
		if len(node.Keys) != len(node.Elems) {
			return reflect.Value{}, fmt.Errorf("%w: map node has %d keys and %d values", ErrCorrupt, len(node.Keys), len(node.Elems))
		}
		v := reflect.MakeMapWithSize(rt, len(node.Keys))
		d.memo(id, v)
		for i := range node.Keys {
			key, err := d.value(node.Keys[i])
			if err != nil {
				return reflect.Value{}, err
			}
			elem, err := d.value(node.Elems[i])
			if err != nil {
				return reflect.Value{}, err
			}
			kv := reflect.New(rt.Key()).Elem()
			if err := setValue(kv, key); err != nil {
				return reflect.Value{}, err
			}
			ev := reflect.New(rt.Elem()).Elem()
			if err := setValue(ev, elem); err != nil {
				return reflect.Value{}, err
			}
			v.SetMapIndex(kv, ev)
		}
		return v, nil

	case reflect.Pointer:
		if len(node.Elems) != 1 {
			return reflect.Value{}, fmt.Errorf("%w: pointer node has %d elements", ErrCorrupt, len(node.Elems))
		}
		v := reflect.New(rt.Elem())
		if rt != v.Type() {
			v = v.Convert(rt)
		}
		d.memo(id, v)
		child, err := d.value(node.Elems[0])
		if err != nil {
			return reflect.Value{}, err
		}
		if err := setValue(v.Elem(), child); err != nil {
			return reflect.Value{}, err
		}
		return v, nil

	case reflect.Struct:
		if rt == timeType {
			raw, ok := node.Scalar.([]byte)
			if !ok {
				return reflect.Value{}, fmt.Errorf("%w: time payload is %T", ErrCorrupt, node.Scalar)
			}
			var t time.Time
			if err := t.UnmarshalBinary(raw); err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			v := reflect.ValueOf(t)
			d.memo(id, v)
			return v, nil
		}
		if len(node.Fields) != len(node.Elems) {
			return reflect.Value{}, fmt.Errorf("%w: struct node has %d names and %d values", ErrCorrupt, len(node.Fields), len(node.Elems))
		}
		v := reflect.New(rt).Elem()
		for i, fname := range node.Fields {
			sf, ok := rt.FieldByName(fname)
			if !ok {
				continue
			}
			child, err := d.value(node.Elems[i])
			if err != nil {
				return reflect.Value{}, err
			}
			if err := setValue(v.FieldByIndex(sf.Index), child); err != nil {
				return reflect.Value{}, err
			}
		}
		d.memo(id, v)
		return v, nil
	}

	return reflect.Value{}, fmt.Errorf("%w: undecodable node type %s", ErrCorrupt, rt.String())
}

func (d *decoder) memo(id int32, v reflect.Value) {
	d.vals[id] = v
	d.done[id] = true
}

// setValue assigns src into dst, tolerating the nil-any case (invalid
// src leaves dst zero) and converting where assignment needs it.
func setValue(dst, src reflect.Value) error {
	if !src.IsValid() {
		return nil
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("%w: cannot place %s into %s", ErrCorrupt, src.Type(), dst.Type())
}

// coerceScalar rebuilds a typed scalar from the wire representation.
// MessagePack hands interface-typed numbers back in whatever width fits,
// so each numeric family is normalized explicitly.
func coerceScalar(rt reflect.Type, s any) (reflect.Value, error) {
	v := reflect.New(rt).Elem()
	switch rt.Kind() {
	case reflect.Bool:
		b, ok := s.(bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: bool payload is %T", ErrCorrupt, s)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := asInt64(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := asUint64(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(f)
	case reflect.String:
		switch sv := s.(type) {
		case string:
			v.SetString(sv)
		case []byte:
			v.SetString(string(sv))
		default:
			return reflect.Value{}, fmt.Errorf("%w: string payload is %T", ErrCorrupt, s)
		}
	default:
		return reflect.Value{}, fmt.Errorf("%w: scalar payload for %s", ErrCorrupt, rt.String())
	}
	return v, nil
}

func asInt64(s any) (int64, error) {
	switch n := s.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("%w: integer payload is %T", ErrCorrupt, s)
}

func asUint64(s any) (uint64, error) {
	switch n := s.(type) {
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case int8:
		return uint64(n), nil
	case int16:
		return uint64(n), nil
	case int32:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	}
	return 0, fmt.Errorf("%w: unsigned payload is %T", ErrCorrupt, s)
}

func asFloat64(s any) (float64, error) {
	switch n := s.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: float payload is %T", ErrCorrupt, s)
}
