package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseBorrow    Phase = "borrow"    // pinning caller arrays
	PhaseConstruct Phase = "construct" // building host arrays/objects
	PhaseInit      Phase = "init"      // class/member cache resolution
	PhaseVersion   Phase = "version"   // protocol version negotiation
	PhaseEncode    Phase = "encode"    // message/IR encoding
	PhaseDecode    Phase = "decode"    // message decoding
	PhaseSearch    Phase = "search"    // wildcard matching and query encoding
	PhaseStream    Phase = "stream"    // stream handle lifecycle
	PhaseHost      Phase = "host"      // host runtime calls
	PhaseRuntime   Phase = "runtime"   // anything else at an entry point
)

// Kind categorizes the error
type Kind string

const (
	KindNativeFailure      Kind = "native_failure"
	KindAlreadySignaled    Kind = "already_signaled"
	KindAcquisitionFailed  Kind = "acquisition_failed"
	KindLengthOverflow     Kind = "length_overflow"
	KindAllocation         Kind = "allocation"
	KindCopyFailed         Kind = "copy_failed"
	KindEncoding           Kind = "encoding"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindInvalidQuery       Kind = "invalid_query"
	KindTooManySubqueries  Kind = "too_many_subqueries"
	KindInvalidInput       Kind = "invalid_input"
	KindClassNotFound      Kind = "class_not_found"
	KindMemberNotFound     Kind = "member_not_found"
	KindNotInitialized     Kind = "not_initialized"
	KindNotFound           Kind = "not_found"
)

// ErrAlreadySignaled marks failures that already left an exception pending in
// the host. It matches any phase.
var ErrAlreadySignaled = &Error{Kind: KindAlreadySignaled}

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !stderrors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// Signaled reports whether err means an exception is already pending in the host.
func Signaled(err error) bool {
	return stderrors.Is(err, ErrAlreadySignaled)
}

// Convenience constructors for common error patterns

// AlreadySignaled creates an error for a host call that left an exception pending
func AlreadySignaled(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadySignaled,
		Detail: detail,
	}
}

// NativeFailure creates an internal logic or allocation failure
func NativeFailure(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNativeFailure,
		Detail: detail,
	}
}

// AcquisitionFailed creates an error for an array the host could not pin.
// When pending is true the error also matches ErrAlreadySignaled.
func AcquisitionFailed(path []string, pending bool, cause error) *Error {
	return hostFailure(PhaseBorrow, KindAcquisitionFailed, path, "host could not pin array", pending, cause)
}

// AllocationFailed creates an error for a host allocation failure
func AllocationFailed(length int, pending bool, cause error) *Error {
	e := hostFailure(PhaseConstruct, KindAllocation, nil,
		fmt.Sprintf("host could not allocate array of %d elements", length), pending, cause)
	e.Value = length
	return e
}

// CopyFailed creates an error for a host copy failure
func CopyFailed(length int, pending bool, cause error) *Error {
	e := hostFailure(PhaseConstruct, KindCopyFailed, nil,
		fmt.Sprintf("host failed copying %d elements", length), pending, cause)
	e.Value = length
	return e
}

func hostFailure(phase Phase, kind Kind, path []string, detail string, pending bool, cause error) *Error {
	if pending {
		cause = &Error{Phase: phase, Kind: KindAlreadySignaled, Detail: detail, Cause: cause}
	}
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Path:   path,
		Detail: detail,
		Cause:  cause,
	}
}

// LengthOverflow creates an error for a length the host index type cannot hold
func LengthOverflow(length int, limit int) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindLengthOverflow,
		Detail: fmt.Sprintf("length %d exceeds host array limit %d", length, limit),
		Value:  length,
	}
}

// Encoding creates an encoding/decoding failure reported by the algorithms
func Encoding(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEncoding,
		Detail: detail,
		Cause:  cause,
	}
}

// UnsupportedVersion creates a protocol mismatch error
func UnsupportedVersion(what string, got []byte) *Error {
	return &Error{
		Phase:  PhaseVersion,
		Kind:   KindUnsupportedVersion,
		Detail: fmt.Sprintf("unsupported version for %s", what),
		Value:  string(got),
	}
}

// InvalidQuery creates an error for a query with no valid decomposition
func InvalidQuery(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSearch,
		Kind:   KindInvalidQuery,
		Detail: detail,
		Cause:  cause,
	}
}

// TooManySubqueries creates an error for a subquery count beyond the host array limit
func TooManySubqueries(count uint64) *Error {
	return &Error{
		Phase:  PhaseSearch,
		Kind:   KindTooManySubqueries,
		Detail: "subqueries can't fit in a host array",
		Value:  count,
	}
}

// InvalidInput creates an invalid argument error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// OutOfBounds creates an error for a declared length beyond the actual array
func OutOfBounds(phase Phase, path []string, declared, actual int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Path:   path,
		Detail: fmt.Sprintf("declared length %d out of bounds (length %d)", declared, actual),
		Value:  declared,
	}
}

// ClassNotFound creates an error for an unresolvable host class
func ClassNotFound(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindClassNotFound,
		Detail: fmt.Sprintf("couldn't find %s", name),
		Cause:  cause,
	}
}

// MemberNotFound creates an error for an unresolvable field or constructor
func MemberNotFound(class, member, descriptor string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindMemberNotFound,
		Path:   []string{class, member},
		Detail: fmt.Sprintf("no member %s with descriptor %s", member, descriptor),
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %v not found", what, id),
		Value:  id,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
