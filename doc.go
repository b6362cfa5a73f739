// Package clpffi is a Go foreign-call bridge for CLP log encoding.
//
// The bridge connects a managed-runtime caller to the CLP encoding engine:
// it borrows and releases caller arrays, builds result arrays and objects,
// translates failures into exactly one caller-visible exception, resolves
// the caller's classes once per load, and drives per-stream IR encoding.
//
// # Architecture Overview
//
//	clpffi/
//	├── bridge/          Entry points, class/member cache, exception bridge, streams
//	├── hostrt/          Host runtime interface, borrowed arrays, array construction
//	│   └── heap/        In-process managed heap implementing the host runtime
//	├── resource/        Handle table for stream state
//	├── errors/          Structured error types
//	├── ffi/             Message encoding, decoding and wildcard matching
//	│   ├── irstream/    IR stream preamble, log events and reader
//	│   └── search/      Wildcard query compilation into subqueries
//	├── client/          Go API: encoders, decoders, IR output streams
//	├── wasmhost/        wazero host module exposing the bridge to guests
//	└── cmd/clpffi/      Command-line encoder, reader and query explorer
//
// # Quick Start
//
//	rt, err := client.New(client.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	m, err := rt.MessageEncoder().EncodeMessage("took 42 ms for user=bob")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	msg, err := rt.MessageDecoder().Decode(m)
//
// Streams:
//
//	s, err := rt.NewIrOutputStream(w, client.StreamOptions{TimeZoneID: "UTC"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = s.WriteLogEvent(time.Now().UnixMilli(), "worker 7 started")
//	_ = s.Close()
//
// # Exceptions
//
// Every bridge entry point either completes or leaves exactly one exception
// pending in the caller's environment and returns a sentinel. A failure that
// already left an exception pending is never raised a second time. See the
// bridge package for the mapping from failure kinds to exception classes.
package clpffi
