package objgraph

import (
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
)

// Encode serializes v into a self-describing byte stream. Shared and
// cyclic references are preserved: encoding a value that contains a
// reference to itself terminates and decodes back to a true cycle.
func Encode(v any) ([]byte, error) {
	e := &encoder{
		types:   make(map[reflect.Type]int32),
		refs:    make(map[refKey]int32),
		nilType: -1,
	}
	if v == nil {
		e.g.Root = e.append(wireNode{Type: e.nilTypeID(), Nil: true})
	} else {
		root, err := e.node(reflect.ValueOf(v))
		if err != nil {
			return nil, err
		}
		e.g.Root = root
	}
	return msgpack.Marshal(&e.g)
}

// refKey identifies a reference-typed value for deduplication. The type
// disambiguates values that share an address, and the length separates
// distinct subslices over one backing array.
type refKey struct {
	ptr uintptr
	len int
	rt  reflect.Type
}

type encoder struct {
	g       wireGraph
	types   map[reflect.Type]int32
	refs    map[refKey]int32
	nilType int32
}

func (e *encoder) append(n wireNode) int32 {
	e.g.Nodes = append(e.g.Nodes, n)
	return int32(len(e.g.Nodes) - 1)
}

func (e *encoder) nilTypeID() int32 {
	if e.nilType < 0 {
		e.g.Types = append(e.g.Types, wireType{Kind: kindNil})
		e.nilType = int32(len(e.g.Types) - 1)
	}
	return e.nilType
}

// typeID resolves rt to a type table index, appending an entry on first
// sight. Named types outside the registry are rejected here, before any
// value is written.
func (e *encoder) typeID(rt reflect.Type) (int32, error) {
	if id, ok := e.types[rt]; ok {
		return id, nil
	}

	var wt wireType
	switch {
	case rt == timeType:
		wt = wireType{Kind: kindTime}
	case rt.PkgPath() != "":
		name, ok := lookupName(rt)
		if !ok {
			return -1, &TypeError{Err: ErrUnregistered, TypeName: rt.String()}
		}
		wt = wireType{Kind: kindNamed, Name: name}
	case isByteSlice(rt):
		wt = wireType{Kind: kindBytes}
	default:
		switch rt.Kind() {
		case reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
			reflect.Float32, reflect.Float64,
			reflect.String:
			wt = wireType{Kind: kindScalar, Name: rt.Kind().String()}
		case reflect.Struct:
			// the empty struct, for map-as-set values
			if rt.NumField() != 0 {
				return -1, &TypeError{Err: ErrUnsupported, TypeName: rt.String()}
			}
			wt = wireType{Kind: kindScalar, Name: "struct{}"}
		case reflect.Slice:
			elem, err := e.typeID(rt.Elem())
			if err != nil {
				return -1, err
			}
			wt = wireType{Kind: kindSlice, Elem: elem}
		case reflect.Array:
			elem, err := e.typeID(rt.Elem())
			if err != nil {
				return -1, err
			}
			wt = wireType{Kind: kindArray, Elem: elem, Len: rt.Len()}
		case reflect.Map:
			key, err := e.typeID(rt.Key())
			if err != nil {
				return -1, err
			}
			elem, err := e.typeID(rt.Elem())
			if err != nil {
				return -1, err
			}
			wt = wireType{Kind: kindMap, Key: key, Elem: elem}
		case reflect.Pointer:
			elem, err := e.typeID(rt.Elem())
			if err != nil {
				return -1, err
			}
			wt = wireType{Kind: kindPointer, Elem: elem}
		case reflect.Interface:
			if rt.NumMethod() != 0 {
				return -1, &TypeError{Err: ErrUnsupported, TypeName: rt.String()}
			}
			wt = wireType{Kind: kindAny}
		default:
			return -1, &TypeError{Err: ErrUnsupported, TypeName: rt.String()}
		}
	}

	e.g.Types = append(e.g.Types, wt)
	id := int32(len(e.g.Types) - 1)
	e.types[rt] = id
	return id, nil
}

// node encodes one value, returning its node table index. Reference
// kinds are deduplicated: a revisited pointer, map, or slice returns the
// index assigned on first visit, which is how cycles terminate.
func (e *encoder) node(v reflect.Value) (int32, error) {
	rt := v.Type()

	if rt.Kind() == reflect.Interface {
		if v.IsNil() {
			return e.append(wireNode{Type: e.nilTypeID(), Nil: true}), nil
		}
		return e.node(v.Elem())
	}

	tid, err := e.typeID(rt)
	if err != nil {
		return -1, err
	}

	switch rt.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return e.append(wireNode{Type: tid, Nil: true}), nil
		}
		if !isByteSlice(rt) {
			key := refKey{ptr: v.Pointer(), rt: rt}
			if rt.Kind() == reflect.Slice {
				key.len = v.Len()
			}
			if id, ok := e.refs[key]; ok {
				return id, nil
			}
			id := e.append(wireNode{Type: tid})
			e.refs[key] = id
			return id, e.fill(id, v)
		}
	}

	id := e.append(wireNode{Type: tid})
	return id, e.fill(id, v)
}

// fill writes the content of v into the node at id. Child nodes are
// appended during recursion, so the node is always re-addressed through
// the table rather than a held pointer.
func (e *encoder) fill(id int32, v reflect.Value) error {
	rt := v.Type()

	switch rt.Kind() {
	case reflect.Bool:
		e.g.Nodes[id].Scalar = v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.g.Nodes[id].Scalar = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.g.Nodes[id].Scalar = v.Uint()
	case reflect.Float32, reflect.Float64:
		e.g.Nodes[id].Scalar = v.Float()
	case reflect.String:
		e.g.Nodes[id].Scalar = v.String()

	case reflect.Slice:
		if isByteSlice(rt) {
			e.g.Nodes[id].Scalar = append([]byte(nil), v.Bytes()...)
			return nil
		}
		elems := make([]int32, v.Len())
		for i := 0; i < v.Len(); i++ {
			cid, err := e.node(v.Index(i))
			if err != nil {
				return err
			}
			elems[i] = cid
		}
		e.g.Nodes[id].Elems = elems

	case reflect.Array:
		elems := make([]int32, v.Len())
		for i := 0; i < v.Len(); i++ {
			cid, err := e.node(v.Index(i))
			if err != nil {
				return err
			}
			elems[i] = cid
		}
		e.g.Nodes[id].Elems = elems

	case reflect.Map:
		iter := v.MapRange()
		keys := make([]int32, 0, v.Len())
		elems := make([]int32, 0, v.Len())
		for iter.Next() {
			kid, err := e.node(iter.Key())
			if err != nil {
				return err
			}
			vid, err := e.node(iter.Value())
			if err != nil {
				return err
			}
			keys = append(keys, kid)
			elems = append(elems, vid)
		}
		e.g.Nodes[id].Keys = keys
		e.g.Nodes[id].Elems = elems

	case reflect.Pointer:
		cid, err := e.node(v.Elem())
		if err != nil {
			return err
		}
		e.g.Nodes[id].Elems = []int32{cid}

	case reflect.Struct:
		if rt == timeType {
			b, err := v.Interface().(time.Time).MarshalBinary()
			if err != nil {
				return err
			}
			e.g.Nodes[id].Scalar = b
			return nil
		}
		if rt.NumField() == 0 {
			return nil
		}
		name, _ := lookupName(rt)
		plan, ok := lookupPlan(name)
		if !ok {
			return &TypeError{Err: ErrUnregistered, TypeName: rt.String()}
		}
		names := make([]string, 0, len(plan.fields))
		elems := make([]int32, 0, len(plan.fields))
		for _, f := range plan.fields {
			cid, err := e.node(v.FieldByIndex(f.index))
			if err != nil {
				return err
			}
			names = append(names, f.name)
			elems = append(elems, cid)
		}
		e.g.Nodes[id].Fields = names
		e.g.Nodes[id].Elems = elems

	default:
		return &TypeError{Err: ErrUnsupported, TypeName: rt.String()}
	}

	return nil
}

// isByteSlice reports whether rt is a slice of plain bytes. Byte slices
// travel as scalar payloads instead of per-element nodes.
func isByteSlice(rt reflect.Type) bool {
	return rt.Kind() == reflect.Slice &&
		rt.Elem().Kind() == reflect.Uint8 && rt.Elem().PkgPath() == ""
}
