// Package bridge exposes CLP message encoding, decoding, IR streams and
// wildcard search to a managed host runtime.
//
// Every entry point takes the caller's hostrt.Env. Caller arrays are pinned
// only for the duration of a call and always released. Failures never
// escape as Go errors: each entry point raises exactly one host exception
// and returns its sentinel value, unless the host already has an exception
// pending, in which case nothing further is raised.
//
// Class and member lookups happen once, at Load, and are kept as global
// references until Unload:
//
//	b, err := bridge.Load(env, bridge.DefaultConfig())
//	if err != nil {
//		return err // an exception is pending in env
//	}
//	defer b.Unload(env)
//
//	b.ValidateVersions(env, schema, len(schemaBytes), methods, len(methodsBytes))
//	stream := b.CreateStream(env)
//	preamble := b.EightByteEncodePreamble(env, stream, pattern, n1, syntax, n2, tz, n3)
//
// Exceptions by failure kind:
//
//	native failure, host acquisition or allocation   RuntimeException
//	host copy failure, encoding failure              IOException
//	unsupported version, length overflow,
//	too many subqueries                              UnsupportedOperationException
//	invalid query or argument                        IllegalArgumentException
//	class or member lookup at Load                   ClassNotFoundException
package bridge
