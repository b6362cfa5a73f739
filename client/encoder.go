package client

import (
	"github.com/wippyai/clp-ffi/ffi"
)

// EncodedMessage is a message split by the bridge. Dictionary variable
// bounds index Message.
type EncodedMessage struct {
	ffi.EncodedMessage[int64]
	Message string
}

// DictVars returns the dictionary variables as strings.
func (m *EncodedMessage) DictVars() []string {
	return m.EncodedMessage.DictVars(m.Message)
}

// FlattenDictVars concatenates the dictionary variables and returns the end
// offset of each one, the form DecodeMessage takes them in.
func (m *EncodedMessage) FlattenDictVars() ([]byte, []int32) {
	return m.EncodedMessage.FlattenDictVars(m.Message)
}

// MessageEncoder encodes messages with eight-byte encoded variables.
type MessageEncoder struct {
	rt *Runtime
}

// MessageEncoder returns an encoder bound to rt.
func (rt *Runtime) MessageEncoder() *MessageEncoder {
	return &MessageEncoder{rt: rt}
}

// EncodeMessage splits message into logtype, encoded variables and
// dictionary variable bounds.
func (e *MessageEncoder) EncodeMessage(message string) (*EncodedMessage, error) {
	m := &EncodedMessage{Message: message}
	err := e.rt.call(func(s *scope) error {
		msg, n := s.str(message)
		obj, err := s.env.New(e.rt.classes.EncodedMessage)
		if err != nil {
			return err
		}
		s.keep(obj)

		e.rt.bridge.EncodeMessage(s.env, msg, n, obj)
		if s.env.ExceptionCheck() {
			return nil
		}
		if m.Logtype, err = arrayField(s, obj, "logtype", s.env.Bytes); err != nil {
			return err
		}
		if m.EncodedVars, err = arrayField(s, obj, "encodedVars", s.env.Longs); err != nil {
			return err
		}
		m.DictVarBounds, err = arrayField(s, obj, "dictionaryVarBounds", s.env.Ints)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
