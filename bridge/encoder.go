package bridge

import (
	"github.com/wippyai/clp-ffi/errors"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/hostrt"
)

// EncodeMessage encodes message and stores the logtype, encoded variables
// and dictionary variable bounds in the caller's encoded-message object.
// The object is only modified once all three arrays exist, and a failed
// field write restores the fields already written.
func (b *Bridge) EncodeMessage(env hostrt.Env, message hostrt.Ref, messageLen int, encodedMessage hostrt.Ref) {
	do(b, env, "encode-message", func() error {
		if err := nullCheck(errors.PhaseEncode, encodedMessage, "encodedMessage"); err != nil {
			return err
		}
		msg, err := borrowString(env, message, messageLen, "message")
		if err != nil {
			return err
		}

		var m ffi.EncodedMessage[int64]
		if err := ffi.EncodeMessage(msg, &m); err != nil {
			return err
		}
		return b.storeEncodedMessage(env, encodedMessage, &m)
	})
}

func (b *Bridge) storeEncodedMessage(env hostrt.Env, obj hostrt.Ref, m *ffi.EncodedMessage[int64]) error {
	logtype, err := hostrt.NewArray(env, m.Logtype)
	if err != nil {
		return err
	}
	defer deleteLocals(env, logtype)

	encodedVars, err := hostrt.NewArray(env, m.EncodedVars)
	if err != nil {
		return err
	}
	defer deleteLocals(env, encodedVars)

	bounds, err := hostrt.NewArray(env, m.DictVarBounds)
	if err != nil {
		return err
	}
	defer deleteLocals(env, bounds)

	fields := b.cache.messageFields
	values := [...]hostrt.Ref{fieldLogtype: logtype, fieldEncodedVars: encodedVars, fieldDictVarBounds: bounds}

	var prev [len(values)]hostrt.Ref
	defer func() { deleteLocals(env, prev[:]...) }()
	for i := range prev {
		ref, err := env.GetObjectField(obj, fields[i])
		if err != nil {
			return hostFailure(env, errors.PhaseEncode, "GetObjectField "+EncodedMessageShape.Fields[i].Name, err)
		}
		prev[i] = ref
	}

	for i, v := range values {
		if err := env.SetObjectField(obj, fields[i], v); err != nil {
			// The host allows no calls while an exception is pending.
			if !env.ExceptionCheck() {
				for j := range i {
					_ = env.SetObjectField(obj, fields[j], prev[j])
				}
			}
			return hostFailure(env, errors.PhaseEncode, "SetObjectField "+EncodedMessageShape.Fields[i].Name, err)
		}
	}
	return nil
}
