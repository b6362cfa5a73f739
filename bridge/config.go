package bridge

import (
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/clp-ffi/ffi/search"
	"github.com/wippyai/clp-ffi/hostrt"
)

// Member shapes of the host classes the bridge reads, writes and creates.
// Field and constructor descriptors are derived from them.
var (
	EncodedMessageShape = &wit.Record{Fields: []wit.Field{
		{Name: "logtype", Type: hostrt.ByteArray},
		{Name: "encodedVars", Type: hostrt.LongArray},
		{Name: "dictionaryVarBounds", Type: hostrt.IntArray},
	}}

	// SubqueryShape lists the subquery constructor's parameters in order.
	SubqueryShape = &wit.Record{Fields: []wit.Field{
		{Name: "query", Type: hostrt.ByteArray},
		{Name: "logtypeQuery", Type: hostrt.ByteArray},
		{Name: "logtypeQueryContainsWildcards", Type: wit.Bool{}},
		{Name: "dictVarBounds", Type: hostrt.IntArray},
		{Name: "encodedVars", Type: hostrt.LongArray},
		{Name: "wildcardVarPlaceholders", Type: hostrt.ByteArray},
		{Name: "wildcardVarBounds", Type: hostrt.IntArray},
	}}
)

// Field indexes within EncodedMessageShape.
const (
	fieldLogtype = iota
	fieldEncodedVars
	fieldDictVarBounds
)

// ClassNames are the host class names the bridge resolves.
type ClassNames struct {
	EncodedMessage string
	Subquery       string

	RuntimeException     string
	IOException          string
	IllegalArgument      string
	UnsupportedOperation string
	ClassNotFound        string
}

// Config holds configuration for Load.
type Config struct {
	// Logger overrides the package logger for this bridge.
	Logger  *zap.Logger
	Classes ClassNames

	// MaxSubqueries bounds the subqueries one wildcard query may compile
	// to. Zero means search.DefaultMaxSubqueries.
	MaxSubqueries int
}

// DefaultConfig returns the class names of the reference host.
func DefaultConfig() Config {
	return Config{
		Classes: ClassNames{
			EncodedMessage:       "clp/ffi/EncodedMessage",
			Subquery:             "clp/ffi/EightByteClpEncodedSubquery",
			RuntimeException:     "lang/RuntimeException",
			IOException:          "io/IOException",
			IllegalArgument:      "lang/IllegalArgumentException",
			UnsupportedOperation: "lang/UnsupportedOperationException",
			ClassNotFound:        "lang/ClassNotFoundException",
		},
		MaxSubqueries: search.DefaultMaxSubqueries,
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}

func (c Config) maxSubqueries() uint64 {
	if c.MaxSubqueries <= 0 {
		return search.DefaultMaxSubqueries
	}
	return uint64(min(c.MaxSubqueries, hostrt.MaxArrayLength))
}
