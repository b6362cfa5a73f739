// Package errors provides structured error types for the clp-ffi bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Kinds follow the bridge's failure taxonomy: acquisition,
// construction, encoding, version, query and host-signal failures.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindEncoding).
//		Path("logtype").
//		Detail("placeholder %d has no variable", idx).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.LengthOverflow(n, hostrt.MaxArrayLength)
//	err := errors.AcquisitionFailed([]string{"message"}, env.ExceptionCheck(), cause)
//
// A failure that left an exception pending in the host matches
// ErrAlreadySignaled through errors.Is, whatever its own kind:
//
//	if errors.Signaled(err) {
//		return sentinel // never raise a second exception
//	}
package errors
