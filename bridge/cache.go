package bridge

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/hostrt"
)

// CacheState is the lifecycle state of a ClassCache.
type CacheState int32

const (
	CacheUninitialized CacheState = iota
	CacheInitializing
	CacheReady
	CacheTornDown
)

func (s CacheState) String() string {
	switch s {
	case CacheUninitialized:
		return "uninitialized"
	case CacheInitializing:
		return "initializing"
	case CacheReady:
		return "ready"
	case CacheTornDown:
		return "torn down"
	default:
		return "unknown"
	}
}

// ClassCache holds the global class references and member identifiers the
// bridge needs. It is resolved all at once; a partial resolution is
// released and leaves the cache TornDown for good.
type ClassCache struct {
	names ClassNames
	log   *zap.Logger

	mu    sync.Mutex
	state atomic.Int32

	encodedMessage hostrt.Ref
	messageFields  [3]hostrt.FieldID
	subquery       hostrt.Ref
	subqueryCtor   hostrt.MethodID
}

// NewClassCache returns an uninitialized cache for the given classes.
func NewClassCache(names ClassNames, log *zap.Logger) *ClassCache {
	if log == nil {
		log = Logger()
	}
	return &ClassCache{names: names, log: log}
}

// State returns the current state.
func (c *ClassCache) State() CacheState {
	return CacheState(c.state.Load())
}

// Initialize resolves every class and member. It may run once.
func (c *ClassCache) Initialize(env hostrt.Env) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.CompareAndSwap(int32(CacheUninitialized), int32(CacheInitializing)) {
		return errors.New(errors.PhaseInit, errors.KindNativeFailure).
			Detail("class cache is %s", c.State()).
			Build()
	}

	if err := c.resolve(env); err != nil {
		c.releaseLocked(env)
		c.state.Store(int32(CacheTornDown))
		c.log.Warn("class cache initialization failed", zap.Error(err))
		return err
	}

	c.state.Store(int32(CacheReady))
	c.log.Info("class cache ready",
		zap.String("encoded_message", c.names.EncodedMessage),
		zap.String("subquery", c.names.Subquery))
	return nil
}

func (c *ClassCache) resolve(env hostrt.Env) error {
	var err error
	if c.encodedMessage, err = globalClass(env, c.names.EncodedMessage); err != nil {
		return err
	}
	for i, f := range EncodedMessageShape.Fields {
		desc, err := hostrt.Descriptor(f.Type)
		if err != nil {
			return err
		}
		id, err := env.GetFieldID(c.encodedMessage, f.Name, desc)
		if err != nil {
			return errors.MemberNotFound(c.names.EncodedMessage, f.Name, desc, err)
		}
		c.messageFields[i] = id
	}

	if c.subquery, err = globalClass(env, c.names.Subquery); err != nil {
		return err
	}
	desc, err := hostrt.MethodDescriptor(hostrt.FieldTypes(SubqueryShape)...)
	if err != nil {
		return err
	}
	if c.subqueryCtor, err = env.GetMethodID(c.subquery, "<init>", desc); err != nil {
		return errors.MemberNotFound(c.names.Subquery, "<init>", desc, err)
	}
	return nil
}

func globalClass(env hostrt.Env, name string) (hostrt.Ref, error) {
	local, err := env.FindClass(name)
	if err != nil {
		return 0, errors.ClassNotFound(name, err)
	}
	global := env.NewGlobalRef(local)
	env.DeleteLocalRef(local)
	if global == 0 {
		return 0, errors.NativeFailure(errors.PhaseInit, "failed to create a global reference to "+name)
	}
	return global, nil
}

// Teardown releases every global reference. It is idempotent and leaves
// the cache TornDown.
func (c *ClassCache) Teardown(env hostrt.Env) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == CacheTornDown {
		return
	}
	c.releaseLocked(env)
	c.state.Store(int32(CacheTornDown))
	c.log.Info("class cache torn down")
}

func (c *ClassCache) releaseLocked(env hostrt.Env) {
	if c.encodedMessage != 0 {
		env.DeleteGlobalRef(c.encodedMessage)
		c.encodedMessage = 0
	}
	if c.subquery != 0 {
		env.DeleteGlobalRef(c.subquery)
		c.subquery = 0
	}
	c.messageFields = [3]hostrt.FieldID{}
	c.subqueryCtor = 0
}

// EncodedMessageClass returns the global reference to the encoded-message class.
func (c *ClassCache) EncodedMessageClass() hostrt.Ref {
	return c.encodedMessage
}

// SubqueryClass returns the global reference to the subquery class.
func (c *ClassCache) SubqueryClass() hostrt.Ref {
	return c.subquery
}

// SubqueryConstructor returns the subquery constructor.
func (c *ClassCache) SubqueryConstructor() hostrt.MethodID {
	return c.subqueryCtor
}
