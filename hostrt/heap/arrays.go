package heap

import (
	"github.com/wippyai/clp-ffi/hostrt"
)

func bytesOf(o *object) *[]byte  { return &o.bytes }
func intsOf(o *object) *[]int32  { return &o.ints }
func longsOf(o *object) *[]int64 { return &o.longs }

// getElements pins an array and hands out a copy of its elements, so
// an aborted release visibly discards changes.
func getElements[T hostrt.Elem](t *Thread, call string, ref hostrt.Ref, kind objKind, data func(*object) *[]T) ([]T, error) {
	if err := t.enter(call); err != nil {
		return nil, err
	}
	if err := t.injected(OpPin); err != nil {
		return nil, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, err := t.array(ref, kind)
	if err != nil {
		return nil, err
	}
	obj.pins++
	t.h.pinned++
	src := *data(obj)
	elems := make([]T, len(src))
	copy(elems, src)
	return elems, nil
}

func releaseElements[T hostrt.Elem](t *Thread, ref hostrt.Ref, kind objKind, data func(*object) *[]T, elems []T, mode hostrt.ReleaseMode) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kind {
		t.violations = append(t.violations, "release of an unknown array")
		return
	}
	if obj.pins == 0 {
		t.violations = append(t.violations, "release of an unpinned array")
		return
	}
	if mode != hostrt.ReleaseAbort {
		copy(*data(obj), elems)
	}
	if mode != hostrt.ReleaseCommit {
		obj.pins--
		t.h.pinned--
	}
}

func newArray[T hostrt.Elem](t *Thread, call string, length int, kind objKind, data func(*object) *[]T) (hostrt.Ref, error) {
	if err := t.enter(call); err != nil {
		return 0, err
	}
	if err := t.injected(OpAlloc); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if length < 0 || length > hostrt.MaxArrayLength {
		return 0, t.raiseLocked(ClassOutOfMemory, "array length out of range")
	}
	obj := &object{kind: kind}
	*data(obj) = make([]T, length)
	return t.h.newRef(obj, false), nil
}

func setRegion[T hostrt.Elem](t *Thread, call string, ref hostrt.Ref, start int, buf []T, kind objKind, data func(*object) *[]T) error {
	if err := t.enter(call); err != nil {
		return err
	}
	if err := t.injected(OpCopy); err != nil {
		return err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, err := t.array(ref, kind)
	if err != nil {
		return err
	}
	dst := *data(obj)
	if start < 0 || start+len(buf) > len(dst) {
		return t.raiseLocked(ClassIndexOutOfBounds, "region out of bounds")
	}
	copy(dst[start:], buf)
	return nil
}

func (t *Thread) GetByteArrayElements(array hostrt.Ref) ([]byte, error) {
	return getElements(t, "GetByteArrayElements", array, kindByteArray, bytesOf)
}

func (t *Thread) ReleaseByteArrayElements(array hostrt.Ref, elems []byte, mode hostrt.ReleaseMode) {
	releaseElements(t, array, kindByteArray, bytesOf, elems, mode)
}

func (t *Thread) NewByteArray(length int) (hostrt.Ref, error) {
	return newArray(t, "NewByteArray", length, kindByteArray, bytesOf)
}

func (t *Thread) SetByteArrayRegion(array hostrt.Ref, start int, buf []byte) error {
	return setRegion(t, "SetByteArrayRegion", array, start, buf, kindByteArray, bytesOf)
}

func (t *Thread) GetIntArrayElements(array hostrt.Ref) ([]int32, error) {
	return getElements(t, "GetIntArrayElements", array, kindIntArray, intsOf)
}

func (t *Thread) ReleaseIntArrayElements(array hostrt.Ref, elems []int32, mode hostrt.ReleaseMode) {
	releaseElements(t, array, kindIntArray, intsOf, elems, mode)
}

func (t *Thread) NewIntArray(length int) (hostrt.Ref, error) {
	return newArray(t, "NewIntArray", length, kindIntArray, intsOf)
}

func (t *Thread) SetIntArrayRegion(array hostrt.Ref, start int, buf []int32) error {
	return setRegion(t, "SetIntArrayRegion", array, start, buf, kindIntArray, intsOf)
}

func (t *Thread) GetLongArrayElements(array hostrt.Ref) ([]int64, error) {
	return getElements(t, "GetLongArrayElements", array, kindLongArray, longsOf)
}

func (t *Thread) ReleaseLongArrayElements(array hostrt.Ref, elems []int64, mode hostrt.ReleaseMode) {
	releaseElements(t, array, kindLongArray, longsOf, elems, mode)
}

func (t *Thread) NewLongArray(length int) (hostrt.Ref, error) {
	return newArray(t, "NewLongArray", length, kindLongArray, longsOf)
}

func (t *Thread) SetLongArrayRegion(array hostrt.Ref, start int, buf []int64) error {
	return setRegion(t, "SetLongArrayRegion", array, start, buf, kindLongArray, longsOf)
}

func (t *Thread) NewObjectArray(length int, elemClass hostrt.Ref) (hostrt.Ref, error) {
	if err := t.enter("NewObjectArray"); err != nil {
		return 0, err
	}
	if err := t.injected(OpAlloc); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, err := t.classOf(elemClass)
	if err != nil {
		return 0, err
	}
	if length < 0 || length > hostrt.MaxArrayLength {
		return 0, t.raiseLocked(ClassOutOfMemory, "array length out of range")
	}
	obj := &object{kind: kindObjectArray, elemClass: c, objs: make([]*object, length)}
	return t.h.newRef(obj, false), nil
}

func (t *Thread) GetObjectArrayElement(array hostrt.Ref, index int) (hostrt.Ref, error) {
	if err := t.enter("GetObjectArrayElement"); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, err := t.array(array, kindObjectArray)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(obj.objs) {
		return 0, t.raiseLocked(ClassIndexOutOfBounds, "object array index out of bounds")
	}
	return t.h.newRef(obj.objs[index], false), nil
}

func (t *Thread) SetObjectArrayElement(array hostrt.Ref, index int, value hostrt.Ref) error {
	if err := t.enter("SetObjectArrayElement"); err != nil {
		return err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, err := t.array(array, kindObjectArray)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(obj.objs) {
		return t.raiseLocked(ClassIndexOutOfBounds, "object array index out of bounds")
	}
	var elem *object
	if value != 0 {
		v, ok := t.h.deref(value)
		if !ok {
			return t.raiseLocked(ClassNullPointer, "dangling reference")
		}
		elem = v
	}
	if !t.h.instanceOf(elem, obj.elemClass) {
		return t.raiseLocked(ClassArrayStore, "element is not a "+obj.elemClass.name)
	}
	obj.objs[index] = elem
	return nil
}
