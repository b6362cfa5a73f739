package heap

import (
	"fmt"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/clp-ffi/hostrt"
)

// Built-in throwable classes. The heap raises the first four itself.
const (
	ClassOutOfMemory          = "lang/OutOfMemoryError"
	ClassIndexOutOfBounds     = "lang/ArrayIndexOutOfBoundsException"
	ClassNoClassDef           = "lang/NoClassDefFoundError"
	ClassNoSuchField          = "lang/NoSuchFieldError"
	ClassNoSuchMethod         = "lang/NoSuchMethodError"
	ClassNullPointer          = "lang/NullPointerException"
	ClassArrayStore           = "lang/ArrayStoreException"
	ClassRuntimeException     = "lang/RuntimeException"
	ClassIOException          = "io/IOException"
	ClassIllegalArgument      = "lang/IllegalArgumentException"
	ClassUnsupportedOperation = "lang/UnsupportedOperationException"
	ClassNotFound             = "lang/ClassNotFoundException"
)

var builtinThrowables = []string{
	ClassOutOfMemory,
	ClassIndexOutOfBounds,
	ClassNoClassDef,
	ClassNoSuchField,
	ClassNoSuchMethod,
	ClassNullPointer,
	ClassArrayStore,
	ClassRuntimeException,
	ClassIOException,
	ClassIllegalArgument,
	ClassUnsupportedOperation,
	ClassNotFound,
}

// FieldDef declares an instance field by name and WIT shape.
type FieldDef struct {
	Type wit.Type
	Name string
}

// ClassDef declares a class. Every class has a no-argument constructor;
// with Constructor set it also has one taking every field in order.
type ClassDef struct {
	Name        string
	Fields      []FieldDef
	Constructor bool
	Throwable   bool
}

// Record builds the field list of a class from a WIT record.
func Record(r *wit.Record) []FieldDef {
	fields := make([]FieldDef, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = FieldDef{Name: f.Name, Type: f.Type}
	}
	return fields
}

type objKind uint8

const (
	kindInstance objKind = iota
	kindClass
	kindByteArray
	kindIntArray
	kindLongArray
	kindObjectArray
)

type class struct {
	obj        *object
	name       string
	fieldDescs []string
	ctorDesc   string
	def        ClassDef
	arrayOf    objKind
}

type object struct {
	class     *class
	elemClass *class
	fields    []any
	bytes     []byte
	ints      []int32
	longs     []int64
	objs      []*object
	message   string
	kind      objKind
	pins      int
}

func (o *object) length() int {
	switch o.kind {
	case kindByteArray:
		return len(o.bytes)
	case kindIntArray:
		return len(o.ints)
	case kindLongArray:
		return len(o.longs)
	case kindObjectArray:
		return len(o.objs)
	}
	return -1
}

type refEntry struct {
	obj    *object
	global bool
}

type fieldRef struct {
	class *class
	index int
}

type methodRef struct {
	class *class
	full  bool
}

// Heap is an in-process managed heap shared by any number of Threads.
type Heap struct {
	classes map[string]*class
	refs    map[hostrt.Ref]refEntry
	fields  []fieldRef
	methods []methodRef
	nextRef hostrt.Ref
	pinned  int
	mu      sync.Mutex
}

// New creates a heap with the built-in throwable and array classes defined.
func New() *Heap {
	h := &Heap{
		classes: make(map[string]*class),
		refs:    make(map[hostrt.Ref]refEntry),
	}
	for _, name := range builtinThrowables {
		_ = h.Define(ClassDef{Name: name, Throwable: true})
	}
	for name, kind := range map[string]objKind{"[B": kindByteArray, "[I": kindIntArray, "[J": kindLongArray} {
		c := &class{name: name, arrayOf: kind}
		c.obj = &object{kind: kindClass, class: c}
		h.classes[name] = c
	}
	return h
}

// Define registers a class. Redefining a name fails.
func (h *Heap) Define(def ClassDef) error {
	descs := make([]string, len(def.Fields))
	params := make([]wit.Type, len(def.Fields))
	for i, f := range def.Fields {
		d, err := hostrt.Descriptor(f.Type)
		if err != nil {
			return fmt.Errorf("class %s field %s: %w", def.Name, f.Name, err)
		}
		descs[i] = d
		params[i] = f.Type
	}
	ctor, err := hostrt.MethodDescriptor(params...)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.classes[def.Name]; ok {
		return fmt.Errorf("class %s already defined", def.Name)
	}
	c := &class{name: def.Name, def: def, fieldDescs: descs, ctorDesc: ctor}
	c.obj = &object{kind: kindClass, class: c}
	h.classes[def.Name] = c
	return nil
}

// Globals returns the number of live global references.
func (h *Heap) Globals() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.refs {
		if e.global {
			n++
		}
	}
	return n
}

// Locals returns the number of live local references.
func (h *Heap) Locals() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.refs {
		if !e.global {
			n++
		}
	}
	return n
}

// Pins returns the number of array pins not yet released.
func (h *Heap) Pins() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pinned
}

// IsSameObject reports whether two references denote the same object.
func (h *Heap) IsSameObject(a, b hostrt.Ref) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ea, oka := h.refs[a]
	eb, okb := h.refs[b]
	if !oka || !okb {
		return a == 0 && b == 0
	}
	return ea.obj == eb.obj
}

// newRef registers a reference to obj. Callers hold h.mu.
func (h *Heap) newRef(obj *object, global bool) hostrt.Ref {
	if obj == nil {
		return 0
	}
	h.nextRef++
	h.refs[h.nextRef] = refEntry{obj: obj, global: global}
	return h.nextRef
}

// deref resolves a reference. Callers hold h.mu.
func (h *Heap) deref(ref hostrt.Ref) (*object, bool) {
	e, ok := h.refs[ref]
	if !ok {
		return nil, false
	}
	return e.obj, true
}

func (h *Heap) instanceOf(obj *object, c *class) bool {
	if obj == nil {
		return true
	}
	if c.arrayOf != 0 {
		return obj.kind == c.arrayOf
	}
	return obj.kind == kindInstance && obj.class == c
}
