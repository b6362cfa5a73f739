package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/hostrt"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// hostFunc is one exported function. fn reads its parameters from stack
// and writes its result to stack[0].
type hostFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	fn      func(mem api.Memory, stack []uint64)
}

// Instantiate registers the session's host module in rt. Guests import it
// under cfg.ModuleName.
func Instantiate(ctx context.Context, rt wazero.Runtime, s *Session) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(s.cfg.moduleName())
	for _, f := range s.functions() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(s.handler(f), f.params, f.results).
			Export(f.name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindNativeFailure, err, "failed to instantiate host module")
	}
	s.log.Debug("host module instantiated")
	return mod, nil
}

func (s *Session) handler(f hostFunc) api.GoModuleFunc {
	return func(ctx context.Context, caller api.Module, stack []uint64) {
		s.mu.Lock()
		defer s.mu.Unlock()
		f.fn(caller.Memory(), stack)
	}
}

func u32(v uint64) uint32 { return uint32(v) }

func i32Result(v int32) uint64 { return uint64(uint32(v)) }

func boolResult(ok bool) uint64 {
	if ok {
		return 1
	}
	return 0
}

func (s *Session) functions() []hostFunc {
	return []hostFunc{
		{"validate-versions", []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}, s.validateVersions},
		{"stream-create", nil, []api.ValueType{i64}, s.streamCreate},
		{"stream-destroy", []api.ValueType{i64}, nil, s.streamDestroy},
		{"stream-preamble", []api.ValueType{i64, i32, i32, i32, i32, i32, i32, i32, i64}, []api.ValueType{i64}, s.streamPreamble},
		{"stream-event", []api.ValueType{i64, i32, i64, i32, i32}, []api.ValueType{i64}, s.streamEvent},
		{"eof-byte", nil, []api.ValueType{i32}, s.eofByte},
		{"encode-message", []api.ValueType{i32, i32}, []api.ValueType{i64}, s.encodeMessage},
		{"decode-message", []api.ValueType{i32, i32, i32, i32, i32, i32, i32, i32}, []api.ValueType{i64}, s.decodeMessage},
		{"matches-any-int-var", []api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}, s.matchesAnyIntVar},
		{"matches-any-float-var", []api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}, s.matchesAnyFloatVar},
		{"encode-wildcard-query", []api.ValueType{i32, i32}, []api.ValueType{i64}, s.encodeWildcardQuery},
		{"subqueries-cbor", []api.ValueType{i64}, []api.ValueType{i64}, s.subqueriesCBOR},
		{"array-len", []api.ValueType{i64}, []api.ValueType{i32}, s.arrayLen},
		{"array-read", []api.ValueType{i64, i32, i32}, []api.ValueType{i32}, s.arrayRead},
		{"ref-drop", []api.ValueType{i64}, nil, s.refDrop},
		{"exception-take", []api.ValueType{i32, i32}, []api.ValueType{i32}, s.exceptionTake},
	}
}

func (s *Session) validateVersions(mem api.Memory, stack []uint64) {
	schemaPtr := u32(stack[0])
	stack[0] = 0
	schema, ok := s.bytesArg(mem, "variablesSchemaVersion", schemaPtr, u32(stack[1]))
	if !ok {
		return
	}
	defer s.release(schema)
	encoding, ok := s.bytesArg(mem, "variableEncodingMethodsVersion", u32(stack[2]), u32(stack[3]))
	if !ok {
		return
	}
	defer s.release(encoding)

	s.bridge.ValidateVersions(s.env, schema, int(u32(stack[1])), encoding, int(u32(stack[3])))
	stack[0] = boolResult(!s.env.ExceptionCheck())
}

func (s *Session) streamCreate(_ api.Memory, stack []uint64) {
	stack[0] = uint64(s.bridge.CreateStream(s.env))
}

func (s *Session) streamDestroy(_ api.Memory, stack []uint64) {
	s.bridge.DestroyStream(s.env, int64(stack[0]))
}

func (s *Session) streamPreamble(mem api.Memory, stack []uint64) {
	handle, fourByte := int64(stack[0]), u32(stack[1]) != 0
	patternLen, syntaxLen, tzLen := u32(stack[3]), u32(stack[5]), u32(stack[7])
	referenceTimestamp := int64(stack[8])
	stack[0] = 0

	pattern, ok := s.bytesArg(mem, "timestampPattern", u32(stack[2]), patternLen)
	if !ok {
		return
	}
	defer s.release(pattern)
	syntax, ok := s.bytesArg(mem, "timestampPatternSyntax", u32(stack[4]), syntaxLen)
	if !ok {
		return
	}
	defer s.release(syntax)
	tz, ok := s.bytesArg(mem, "timeZoneId", u32(stack[6]), tzLen)
	if !ok {
		return
	}
	defer s.release(tz)

	var ref hostrt.Ref
	if fourByte {
		ref = s.bridge.FourByteEncodePreamble(s.env, handle, pattern, int(patternLen), syntax, int(syntaxLen), tz, int(tzLen), referenceTimestamp)
	} else {
		ref = s.bridge.EightByteEncodePreamble(s.env, handle, pattern, int(patternLen), syntax, int(syntaxLen), tz, int(tzLen))
	}
	stack[0] = uint64(ref)
}

func (s *Session) streamEvent(mem api.Memory, stack []uint64) {
	handle, fourByte, timestamp := int64(stack[0]), u32(stack[1]) != 0, int64(stack[2])
	msgLen := u32(stack[4])
	stack[0] = 0

	msg, ok := s.bytesArg(mem, "message", u32(stack[3]), msgLen)
	if !ok {
		return
	}
	defer s.release(msg)

	var ref hostrt.Ref
	if fourByte {
		ref = s.bridge.FourByteEncodeLogEvent(s.env, handle, timestamp, msg, int(msgLen))
	} else {
		ref = s.bridge.EightByteEncodeLogEvent(s.env, handle, timestamp, msg, int(msgLen))
	}
	stack[0] = uint64(ref)
}

func (s *Session) eofByte(_ api.Memory, stack []uint64) {
	stack[0] = uint64(s.bridge.EofByte())
}

func (s *Session) encodeMessage(mem api.Memory, stack []uint64) {
	msgPtr, msgLen := u32(stack[0]), u32(stack[1])
	stack[0] = 0

	msg, ok := s.bytesArg(mem, "message", msgPtr, msgLen)
	if !ok {
		return
	}
	defer s.release(msg)
	obj, err := s.env.New(s.cfg.Bridge.Classes.EncodedMessage)
	if err != nil {
		s.raise(errors.Wrap(errors.PhaseHost, errors.KindNativeFailure, err, "failed to allocate encoded message"))
		return
	}
	defer s.release(obj)

	s.bridge.EncodeMessage(s.env, msg, int(msgLen), obj)
	if s.env.ExceptionCheck() {
		return
	}
	m, err := s.encodedMessage(obj)
	if err == nil {
		stack[0], err = s.newCBOR(m)
	}
	if err != nil {
		s.raise(err)
	}
}

func (s *Session) decodeMessage(mem api.Memory, stack []uint64) {
	logtypePtr, logtypeLen, dictVarsLen := u32(stack[0]), u32(stack[1]), u32(stack[3])
	endsCount, varsCount := u32(stack[5]), u32(stack[7])
	stack[0] = 0

	logtype, ok := s.bytesArg(mem, "logtype", logtypePtr, logtypeLen)
	if !ok {
		return
	}
	defer s.release(logtype)
	dictVars, ok := s.bytesArg(mem, "allDictVars", u32(stack[2]), dictVarsLen)
	if !ok {
		return
	}
	defer s.release(dictVars)
	ends, ok := s.intsArg(mem, "dictVarEndOffsets", u32(stack[4]), endsCount)
	if !ok {
		return
	}
	defer s.release(ends)
	vars, ok := s.longsArg(mem, "encodedVars", u32(stack[6]), varsCount)
	if !ok {
		return
	}
	defer s.release(vars)

	stack[0] = uint64(s.bridge.DecodeMessage(s.env,
		logtype, int(logtypeLen), dictVars, int(dictVarsLen), ends, int(endsCount), vars, int(varsCount)))
}

type matchFunc func(env hostrt.Env, query hostrt.Ref, queryLen int, logtype hostrt.Ref, logtypeLen int, encodedVars hostrt.Ref, encodedVarsLen int) bool

func (s *Session) matchesAny(mem api.Memory, stack []uint64, match matchFunc) {
	queryPtr, queryLen := u32(stack[0]), u32(stack[1])
	logtypeLen, varsCount := u32(stack[3]), u32(stack[5])
	stack[0] = 0

	query, ok := s.bytesArg(mem, "wildcardQuery", queryPtr, queryLen)
	if !ok {
		return
	}
	defer s.release(query)
	logtype, ok := s.bytesArg(mem, "logtype", u32(stack[2]), logtypeLen)
	if !ok {
		return
	}
	defer s.release(logtype)
	vars, ok := s.longsArg(mem, "encodedVars", u32(stack[4]), varsCount)
	if !ok {
		return
	}
	defer s.release(vars)

	stack[0] = boolResult(match(s.env, query, int(queryLen), logtype, int(logtypeLen), vars, int(varsCount)))
}

func (s *Session) matchesAnyIntVar(mem api.Memory, stack []uint64) {
	s.matchesAny(mem, stack, s.bridge.WildcardQueryMatchesAnyIntVar)
}

func (s *Session) matchesAnyFloatVar(mem api.Memory, stack []uint64) {
	s.matchesAny(mem, stack, s.bridge.WildcardQueryMatchesAnyFloatVar)
}

func (s *Session) encodeWildcardQuery(mem api.Memory, stack []uint64) {
	queryPtr, queryLen := u32(stack[0]), u32(stack[1])
	stack[0] = 0

	query, ok := s.bytesArg(mem, "wildcardQuery", queryPtr, queryLen)
	if !ok {
		return
	}
	defer s.release(query)
	stack[0] = uint64(s.bridge.EncodeWildcardQuery(s.env, query, int(queryLen)))
}

func (s *Session) subqueriesCBOR(_ api.Memory, stack []uint64) {
	array := hostrt.Ref(stack[0])
	stack[0] = 0

	sq, err := s.subqueries(array)
	if err == nil {
		stack[0], err = s.newCBOR(sq)
	}
	if err != nil {
		s.raise(err)
	}
}

func (s *Session) newCBOR(v any) (uint64, error) {
	data, err := marshal(v)
	if err != nil {
		return 0, err
	}
	return uint64(s.env.NewBytes(data)), nil
}

func (s *Session) arrayLen(_ api.Memory, stack []uint64) {
	n, err := s.env.GetArrayLength(hostrt.Ref(stack[0]))
	if err != nil {
		s.raise(errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "not an array"))
		stack[0] = i32Result(-1)
		return
	}
	stack[0] = i32Result(int32(n))
}

func (s *Session) arrayRead(mem api.Memory, stack []uint64) {
	ref, ptr, capacity := hostrt.Ref(stack[0]), u32(stack[1]), u32(stack[2])
	stack[0] = i32Result(-1)

	b, err := s.env.Bytes(ref)
	if err != nil {
		s.raise(errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "not a byte array"))
		return
	}
	n, err := writeBytes(mem, "buffer", ptr, capacity, b)
	if err != nil {
		s.raise(err)
		return
	}
	stack[0] = i32Result(int32(n))
}

func (s *Session) refDrop(_ api.Memory, stack []uint64) {
	if ref := hostrt.Ref(stack[0]); ref != 0 {
		s.env.DeleteLocalRef(ref)
	}
}

// exceptionTake clears the pending exception and copies its text into
// guest memory, truncated to the buffer. It returns -1 when none is pending.
func (s *Session) exceptionTake(mem api.Memory, stack []uint64) {
	ptr, capacity := u32(stack[0]), u32(stack[1])
	stack[0] = i32Result(-1)

	e := s.env.TakeException()
	if e == nil {
		return
	}
	s.log.Debug("exception taken", zap.String("class", e.Class), zap.String("message", e.Message))
	n, err := writeBytes(mem, "buffer", ptr, capacity, []byte(e.Error()))
	if err != nil {
		s.log.Warn("failed to copy exception to guest", zap.Error(err))
		stack[0] = 0
		return
	}
	stack[0] = i32Result(int32(n))
}
