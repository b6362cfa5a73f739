// Package ffi implements CLP's message encoding methods: splitting a log
// message into a logtype plus variables, the fixed-width encodings of
// integer and float variables, decoding, and wildcard matching of encoded
// variables.
//
// Two widths exist. Eight-byte encoding stores each encoded variable as an
// int64 and four-byte encoding as an int32. Every algorithm is written once,
// generic over EncodedVariable.
//
//	var m ffi.EncodedMessage[int64]
//	if err := ffi.EncodeMessage("took 12 ms", &m); err != nil {
//		return err
//	}
//	all, ends := m.FlattenDictVars("took 12 ms")
//	msg, err := ffi.DecodeMessage(m.Logtype, m.EncodedVars, all, ends)
package ffi
