// Package irstream writes and reads the CLP intermediate-representation
// stream format.
//
// A stream opens with a magic number selecting the variable width, followed
// by a JSON metadata preamble. Each log event is a sequence of tagged
// records: its variables in message order, its logtype, then its timestamp.
// Eight-byte streams carry absolute timestamps; four-byte streams carry the
// delta from the previous event, starting from the preamble's reference
// timestamp. A single EOF byte ends the stream.
//
//	var b irstream.Buffers
//	_ = irstream.EncodePreamble[int64](&b, "yyyy-MM-dd", "java::SimpleDateFormat", "UTC", 0)
//	w.Write(b.IR)
//	_ = irstream.EncodeLogEvent[int64](&b, ts, "Task 42 finished")
//	w.Write(b.IR)
//	w.Write([]byte{irstream.EOF})
package irstream
