// Package wasmhost exposes the bridge to WebAssembly guests as a wazero
// host module.
//
// Guest buffers are read from and written to the calling module's linear
// memory. Inside the host they live in a per-host heap session, and the
// guest sees heap values as i64 references. A failing call returns 0 and
// leaves an exception the guest retrieves with exception-take.
//
// Functions of the module (pointers and lengths are i32):
//
//	validate-versions(schema, schema_len, encoding, encoding_len) -> i32
//	stream-create() -> i64
//	stream-destroy(stream i64)
//	stream-preamble(stream i64, four_byte i32, pattern, pattern_len,
//	    syntax, syntax_len, tz, tz_len, reference_ts i64) -> i64
//	stream-event(stream i64, four_byte i32, ts i64, msg, msg_len) -> i64
//	eof-byte() -> i32
//	encode-message(msg, msg_len) -> i64               CBOR encoded message
//	decode-message(logtype, logtype_len, dict_vars, dict_vars_len,
//	    ends, ends_count, vars, vars_count) -> i64
//	matches-any-int-var(query, query_len, logtype, logtype_len,
//	    vars, vars_count) -> i32
//	matches-any-float-var(...) -> i32
//	encode-wildcard-query(query, query_len) -> i64    subquery array
//	subqueries-cbor(array i64) -> i64                 CBOR subquery list
//	array-len(ref i64) -> i32
//	array-read(ref i64, ptr, cap) -> i32
//	ref-drop(ref i64)
//	exception-take(ptr, cap) -> i32
//
// Integer arrays in guest memory are little-endian.
package wasmhost
