package heap

import (
	"errors"
	"fmt"

	"github.com/wippyai/clp-ffi/hostrt"
)

var (
	// ErrPending is returned by any call made while an exception is pending.
	ErrPending = errors.New("exception pending")
	// ErrThrown is returned by calls that failed by raising an exception.
	ErrThrown = errors.New("exception raised")
	// ErrInjected is returned by calls failed through FailNext.
	ErrInjected = errors.New("injected fault")
)

// Op names a class of host calls that FailNext can fail.
type Op uint8

const (
	OpPin Op = iota
	OpAlloc
	OpCopy
	OpFindClass
	OpGetFieldID
	OpGetMethodID
	OpNewObject
	OpSetField
)

type fault struct {
	skip  int
	raise bool
}

// Exception is a raised and not yet handled host exception.
type Exception struct {
	Class   string
	Message string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Class
	}
	return e.Class + ": " + e.Message
}

// Thread is one caller thread's view of the heap and implements hostrt.Env.
// A Thread must not be used from two goroutines at once.
type Thread struct {
	h          *Heap
	pending    *object
	faults     map[Op]*fault
	violations []string
}

var _ hostrt.Env = (*Thread)(nil)

// NewThread returns an environment bound to the heap.
func (h *Heap) NewThread() *Thread {
	return &Thread{h: h, faults: make(map[Op]*fault)}
}

// Heap returns the heap this thread belongs to.
func (t *Thread) Heap() *Heap {
	return t.h
}

// FailNext makes the next call of kind op fail. With raise set, the failure
// also leaves an OutOfMemoryError pending.
func (t *Thread) FailNext(op Op, raise bool) {
	t.FailNth(op, 1, raise)
}

// FailNth makes the nth next call of kind op fail. Earlier calls succeed.
func (t *Thread) FailNth(op Op, n int, raise bool) {
	t.faults[op] = &fault{skip: n - 1, raise: raise}
}

// Violations lists protocol violations seen so far: calls made while an
// exception was pending and attempts to raise a second exception.
func (t *Thread) Violations() []string {
	return t.violations
}

// TakeException returns and clears the pending exception.
func (t *Thread) TakeException() *Exception {
	if t.pending == nil {
		return nil
	}
	e := &Exception{Class: t.pending.class.name, Message: t.pending.message}
	t.pending = nil
	return e
}

func (t *Thread) enter(call string) error {
	if t.pending != nil {
		t.violations = append(t.violations, call+" with pending "+t.pending.class.name)
		return ErrPending
	}
	return nil
}

func (t *Thread) injected(op Op) error {
	f, ok := t.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(t.faults, op)
	if f.raise {
		t.h.mu.Lock()
		t.raiseLocked(ClassOutOfMemory, "injected")
		t.h.mu.Unlock()
	}
	return ErrInjected
}

// raiseLocked makes a built-in throwable pending. Callers hold h.mu.
func (t *Thread) raiseLocked(className, msg string) error {
	c := t.h.classes[className]
	t.pending = &object{kind: kindInstance, class: c, message: msg}
	return fmt.Errorf("%w: %s: %s", ErrThrown, className, msg)
}

func (t *Thread) ExceptionCheck() bool {
	return t.pending != nil
}

func (t *Thread) ThrowNew(classRef hostrt.Ref, msg string) error {
	if t.pending != nil {
		t.violations = append(t.violations, "ThrowNew with pending "+t.pending.class.name)
		return ErrPending
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(classRef)
	if !ok || obj.kind != kindClass {
		return t.raiseLocked(ClassNullPointer, "ThrowNew on a non-class reference")
	}
	if !obj.class.def.Throwable {
		return fmt.Errorf("class %s is not throwable", obj.class.name)
	}
	t.pending = &object{kind: kindInstance, class: obj.class, message: msg}
	return nil
}

func (t *Thread) FindClass(name string) (hostrt.Ref, error) {
	if err := t.enter("FindClass"); err != nil {
		return 0, err
	}
	if err := t.injected(OpFindClass); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, ok := t.h.classes[name]
	if !ok {
		return 0, t.raiseLocked(ClassNoClassDef, name)
	}
	return t.h.newRef(c.obj, false), nil
}

func (t *Thread) NewGlobalRef(ref hostrt.Ref) hostrt.Ref {
	if t.enter("NewGlobalRef") != nil {
		return 0
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(ref)
	if !ok {
		return 0
	}
	return t.h.newRef(obj, true)
}

func (t *Thread) DeleteGlobalRef(ref hostrt.Ref) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if e, ok := t.h.refs[ref]; ok && e.global {
		delete(t.h.refs, ref)
	}
}

func (t *Thread) DeleteLocalRef(ref hostrt.Ref) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if e, ok := t.h.refs[ref]; ok && !e.global {
		delete(t.h.refs, ref)
	}
}

func (t *Thread) classOf(ref hostrt.Ref) (*class, error) {
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kindClass {
		return nil, t.raiseLocked(ClassNullPointer, "not a class reference")
	}
	return obj.class, nil
}

func (t *Thread) GetFieldID(classRef hostrt.Ref, name, descriptor string) (hostrt.FieldID, error) {
	if err := t.enter("GetFieldID"); err != nil {
		return 0, err
	}
	if err := t.injected(OpGetFieldID); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, err := t.classOf(classRef)
	if err != nil {
		return 0, err
	}
	for i, f := range c.def.Fields {
		if f.Name == name && c.fieldDescs[i] == descriptor {
			t.h.fields = append(t.h.fields, fieldRef{class: c, index: i})
			return hostrt.FieldID(len(t.h.fields)), nil
		}
	}
	return 0, t.raiseLocked(ClassNoSuchField, name)
}

func (t *Thread) GetMethodID(classRef hostrt.Ref, name, descriptor string) (hostrt.MethodID, error) {
	if err := t.enter("GetMethodID"); err != nil {
		return 0, err
	}
	if err := t.injected(OpGetMethodID); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, err := t.classOf(classRef)
	if err != nil {
		return 0, err
	}
	if name != "<init>" {
		return 0, t.raiseLocked(ClassNoSuchMethod, name)
	}
	switch {
	case descriptor == "()V":
		t.h.methods = append(t.h.methods, methodRef{class: c})
	case c.def.Constructor && descriptor == c.ctorDesc:
		t.h.methods = append(t.h.methods, methodRef{class: c, full: true})
	default:
		return 0, t.raiseLocked(ClassNoSuchMethod, name+descriptor)
	}
	return hostrt.MethodID(len(t.h.methods)), nil
}

func (t *Thread) NewObject(classRef hostrt.Ref, ctor hostrt.MethodID, args ...any) (hostrt.Ref, error) {
	if err := t.enter("NewObject"); err != nil {
		return 0, err
	}
	if err := t.injected(OpNewObject); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	c, err := t.classOf(classRef)
	if err != nil {
		return 0, err
	}
	if ctor == 0 || int(ctor) > len(t.h.methods) || t.h.methods[ctor-1].class != c {
		return 0, t.raiseLocked(ClassNoSuchMethod, "constructor does not belong to "+c.name)
	}

	obj := &object{kind: kindInstance, class: c, fields: make([]any, len(c.def.Fields))}
	if !t.h.methods[ctor-1].full {
		if len(args) != 0 {
			return 0, fmt.Errorf("%s.<init>()V takes no arguments", c.name)
		}
		return t.h.newRef(obj, false), nil
	}
	if len(args) != len(c.def.Fields) {
		return 0, fmt.Errorf("%s.<init>%s takes %d arguments, got %d", c.name, c.ctorDesc, len(c.def.Fields), len(args))
	}
	for i, arg := range args {
		v, err := t.fieldValue(c, i, arg)
		if err != nil {
			return 0, err
		}
		obj.fields[i] = v
	}
	return t.h.newRef(obj, false), nil
}

// fieldValue checks arg against field i of c. Callers hold h.mu.
func (t *Thread) fieldValue(c *class, i int, arg any) (any, error) {
	desc := c.fieldDescs[i]
	switch v := arg.(type) {
	case bool:
		if desc != "Z" {
			return nil, fmt.Errorf("%s.%s: bool given for %s", c.name, c.def.Fields[i].Name, desc)
		}
		return v, nil
	case hostrt.Ref:
		if v == 0 {
			return (*object)(nil), nil
		}
		obj, ok := t.h.deref(v)
		if !ok {
			return nil, fmt.Errorf("%s.%s: dangling reference", c.name, c.def.Fields[i].Name)
		}
		if want, ok := t.h.classes[desc]; ok && t.h.instanceOf(obj, want) {
			return obj, nil
		}
		return nil, fmt.Errorf("%s.%s: reference is not %s", c.name, c.def.Fields[i].Name, desc)
	default:
		return nil, fmt.Errorf("%s.%s: unsupported argument %T", c.name, c.def.Fields[i].Name, arg)
	}
}

func (t *Thread) field(objRef hostrt.Ref, id hostrt.FieldID) (*object, int, error) {
	obj, ok := t.h.deref(objRef)
	if !ok || obj.kind != kindInstance {
		return nil, 0, t.raiseLocked(ClassNullPointer, "field access on a non-object")
	}
	if id == 0 || int(id) > len(t.h.fields) {
		return nil, 0, t.raiseLocked(ClassNoSuchField, "unknown field id")
	}
	f := t.h.fields[id-1]
	if f.class != obj.class {
		return nil, 0, t.raiseLocked(ClassNoSuchField, "field of "+f.class.name+" on "+obj.class.name)
	}
	return obj, f.index, nil
}

func (t *Thread) GetObjectField(objRef hostrt.Ref, id hostrt.FieldID) (hostrt.Ref, error) {
	if err := t.enter("GetObjectField"); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, i, err := t.field(objRef, id)
	if err != nil {
		return 0, err
	}
	switch v := obj.fields[i].(type) {
	case nil:
		return 0, nil
	case *object:
		return t.h.newRef(v, false), nil
	default:
		return 0, fmt.Errorf("field %s is not a reference", obj.class.def.Fields[i].Name)
	}
}

func (t *Thread) SetObjectField(objRef hostrt.Ref, id hostrt.FieldID, value hostrt.Ref) error {
	if err := t.enter("SetObjectField"); err != nil {
		return err
	}
	if err := t.injected(OpSetField); err != nil {
		return err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, i, err := t.field(objRef, id)
	if err != nil {
		return err
	}
	v, err := t.fieldValue(obj.class, i, value)
	if err != nil {
		return err
	}
	obj.fields[i] = v
	return nil
}

func (t *Thread) GetArrayLength(array hostrt.Ref) (int, error) {
	if err := t.enter("GetArrayLength"); err != nil {
		return 0, err
	}
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	obj, ok := t.h.deref(array)
	if !ok || obj.length() < 0 {
		return 0, t.raiseLocked(ClassNullPointer, "not an array")
	}
	return obj.length(), nil
}

// array resolves a primitive array of the given kind. Callers hold h.mu.
func (t *Thread) array(ref hostrt.Ref, kind objKind) (*object, error) {
	obj, ok := t.h.deref(ref)
	if !ok || obj.kind != kind {
		return nil, t.raiseLocked(ClassNullPointer, "not an array of the requested type")
	}
	return obj, nil
}
