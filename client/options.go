package client

import (
	"fmt"

	"go.uber.org/zap"
)

// Encoding selects the width of encoded variables in IR streams.
type Encoding int

const (
	EightByte Encoding = iota
	FourByte
)

func (e Encoding) String() string {
	switch e {
	case EightByte:
		return "eight"
	case FourByte:
		return "four"
	default:
		return "unknown"
	}
}

// ParseEncoding parses "four" or "eight".
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "eight", "8":
		return EightByte, nil
	case "four", "4":
		return FourByte, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

// Compression selects the framing of IR streams.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Ext returns the file extension conventionally used for c.
func (c Compression) Ext() string {
	switch c {
	case CompressionZstd:
		return ".clp.zst"
	case CompressionLZ4:
		return ".clp.lz4"
	default:
		return ".clp"
	}
}

// ParseCompression parses "none", "zstd" or "lz4".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// Options configures a Runtime.
type Options struct {
	// Encoding is the width of streams created by NewIrOutputStream.
	Encoding Encoding

	// Compression frames streams created by NewIrOutputStream.
	Compression Compression

	// Logger is handed to the bridge. nil uses the bridge package logger.
	Logger *zap.Logger
}

// DefaultOptions returns eight-byte, uncompressed streams.
func DefaultOptions() Options {
	return Options{
		Encoding:    EightByte,
		Compression: CompressionNone,
	}
}
