// Package client is the Go-facing API of the bridge. It plays the role of
// the managed-runtime classes that call the bridge: every operation copies
// its arguments into an in-process heap, calls the bridge entry point and
// turns a raised exception into an *Exception error.
//
//	rt, err := client.New(client.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
//	m, err := rt.MessageEncoder().EncodeMessage("took 42 ms")
//
// IR streams are written through IrOutputStream, optionally compressed with
// zstd or lz4, and read back with NewIrReader.
package client
