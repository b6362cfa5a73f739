package heap

import (
	"fmt"

	"github.com/wippyai/clp-ffi/hostrt"
)

// The helpers below act as code running inside the host runtime: they
// build and inspect values without going through the pin/release protocol.

// NewBytes returns a local reference to a new byte array holding b.
func (t *Thread) NewBytes(b []byte) hostrt.Ref {
	return newFilled(t, kindByteArray, bytesOf, b)
}

// NewInts returns a local reference to a new int array holding v.
func (t *Thread) NewInts(v []int32) hostrt.Ref {
	return newFilled(t, kindIntArray, intsOf, v)
}

// NewLongs returns a local reference to a new long array holding v.
func (t *Thread) NewLongs(v []int64) hostrt.Ref {
	return newFilled(t, kindLongArray, longsOf, v)
}

func newFilled[T hostrt.Elem](t *Thread, kind objKind, data func(*object) *[]T, v []T) hostrt.Ref {
	obj := &object{kind: kind}
	*data(obj) = append(make([]T, 0, len(v)), v...)
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	return t.h.newRef(obj, false)
}

// Bytes returns a copy of a byte array's contents.
func (t *Thread) Bytes(ref hostrt.Ref) ([]byte, error) {
	return contents(t, ref, kindByteArray, bytesOf)
}

// Ints returns a copy of an int array's contents.
func (t *Thread) Ints(ref hostrt.Ref) ([]int32, error) {
	return contents(t, ref, kindIntArray, intsOf)
}

// Longs returns a copy of a long array's contents.
func (t *Thread) Longs(ref hostrt.Ref) ([]int64, error) {
	return contents(t, ref, kindLongArray, longsOf)
}

func contents[T hostrt.Elem](t *Thread, ref hostrt.Ref, kind objKind, data func(*object) *[]T) ([]T, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kind {
		return nil, fmt.Errorf("reference %d is not an array of the requested type", ref)
	}
	return append([]T(nil), *data(obj)...), nil
}

// NewObjects returns a new object array of elemClass holding elems. Zero
// elements are stored as null.
func (t *Thread) NewObjects(elemClass string, elems []hostrt.Ref) (hostrt.Ref, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, ok := t.h.classes[elemClass]
	if !ok {
		return 0, fmt.Errorf("class %s not defined", elemClass)
	}
	arr := &object{kind: kindObjectArray, elemClass: c, objs: make([]*object, len(elems))}
	for i, ref := range elems {
		if ref == 0 {
			continue
		}
		obj, ok := t.h.deref(ref)
		if !ok || !t.h.instanceOf(obj, c) {
			return 0, fmt.Errorf("element %d is not a %s", i, elemClass)
		}
		arr.objs[i] = obj
	}
	return t.h.newRef(arr, false), nil
}

// Elements returns local references to the elements of an object array.
func (t *Thread) Elements(ref hostrt.Ref) ([]hostrt.Ref, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kindObjectArray {
		return nil, fmt.Errorf("reference %d is not an object array", ref)
	}
	refs := make([]hostrt.Ref, len(obj.objs))
	for i, o := range obj.objs {
		refs[i] = t.h.newRef(o, false)
	}
	return refs, nil
}

// New instantiates a class through its no-argument constructor.
func (t *Thread) New(className string) (hostrt.Ref, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, ok := t.h.classes[className]
	if !ok || c.arrayOf != 0 {
		return 0, fmt.Errorf("class %s not defined", className)
	}
	obj := &object{kind: kindInstance, class: c, fields: make([]any, len(c.def.Fields))}
	return t.h.newRef(obj, false), nil
}

// ClassName returns the class name of an object.
func (t *Thread) ClassName(ref hostrt.Ref) (string, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kindInstance {
		return "", fmt.Errorf("reference %d is not an object", ref)
	}
	return obj.class.name, nil
}

// Field reads a field by name. Array fields come back as local references,
// null fields as zero, boolean fields as bool.
func (t *Thread) Field(ref hostrt.Ref, name string) (any, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kindInstance {
		return nil, fmt.Errorf("reference %d is not an object", ref)
	}
	for i, f := range obj.class.def.Fields {
		if f.Name != name {
			continue
		}
		switch v := obj.fields[i].(type) {
		case nil:
			if obj.class.fieldDescs[i] == "Z" {
				return false, nil
			}
			return hostrt.Ref(0), nil
		case *object:
			return t.h.newRef(v, false), nil
		default:
			return v, nil
		}
	}
	return nil, fmt.Errorf("class %s has no field %s", obj.class.name, name)
}

// Release deletes local references.
func (t *Thread) Release(refs ...hostrt.Ref) {
	for _, ref := range refs {
		t.DeleteLocalRef(ref)
	}
}
