package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/clp-ffi/bridge"
	"github.com/wippyai/clp-ffi/client"
	"github.com/wippyai/clp-ffi/wasmhost"
)

func main() {
	var (
		encodeFiles = flag.String("encode", "", "Log files to encode (comma-separated)")
		outDir      = flag.String("out", ".", "Output directory for encoded IR streams")
		encoding    = flag.String("encoding", "eight", "IR encoding: four or eight")
		compress    = flag.String("compress", "zstd", "Stream compression: zstd, lz4 or none")
		pattern     = flag.String("pattern", "%Y-%m-%d %H:%M:%S,%3", "Timestamp pattern recorded in the preamble")
		syntax      = flag.String("syntax", "", "Timestamp pattern syntax recorded in the preamble")
		tz          = flag.String("tz", "UTC", "Time zone id recorded in the preamble")
		layout      = flag.String("layout", defaultLayout, "Go time layout of line-leading timestamps")
		catFile     = flag.String("cat", "", "IR stream to decode and print")
		query       = flag.String("query", "", "Wildcard query to compile")
		sample      = flag.String("sample", "", "Log file to match compiled subqueries against")
		interactive = flag.Bool("i", false, "Interactive query explorer")
		guest       = flag.String("guest", "", "WebAssembly guest importing the bridge host module to run")
		memPages    = flag.Uint("memory-pages", 0, "Guest memory limit in 64KB pages (0 = default)")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()
	bridge.SetLogger(log.Named("bridge"))
	wasmhost.SetLogger(log.Named("wasmhost"))

	if err := run(log, options{
		encodeFiles: *encodeFiles,
		outDir:      *outDir,
		encoding:    *encoding,
		compress:    *compress,
		stream: client.StreamOptions{
			TimestampPattern:       *pattern,
			TimestampPatternSyntax: *syntax,
			TimeZoneID:             *tz,
		},
		layout:      *layout,
		catFile:     *catFile,
		query:       *query,
		sample:      *sample,
		interactive: *interactive,
		guest:       *guest,
		memPages:    uint32(*memPages),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	encodeFiles string
	outDir      string
	encoding    string
	compress    string
	stream      client.StreamOptions
	layout      string
	catFile     string
	query       string
	sample      string
	interactive bool
	guest       string
	memPages    uint32
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: clpffi -encode a.log,b.log [-out dir] [-encoding four|eight] [-compress zstd|lz4|none]")
	fmt.Fprintln(os.Stderr, "       clpffi -cat file.clp.zst")
	fmt.Fprintln(os.Stderr, "       clpffi -query '*took 4*' [-sample file.log]")
	fmt.Fprintln(os.Stderr, "       clpffi -i [-sample file.log]  (interactive mode)")
	fmt.Fprintln(os.Stderr, "       clpffi -guest guest.wasm [-memory-pages n]")
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func run(log *zap.Logger, o options) error {
	if o.guest != "" {
		return runGuest(context.Background(), o.guest, o.memPages, log)
	}

	enc, err := client.ParseEncoding(o.encoding)
	if err != nil {
		return err
	}
	comp, err := client.ParseCompression(o.compress)
	if err != nil {
		return err
	}

	rt, err := client.New(client.Options{Encoding: enc, Compression: comp, Logger: log.Named("bridge")})
	if err != nil {
		return fmt.Errorf("load bridge: %w", err)
	}
	defer rt.Close()

	switch {
	case o.interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(rt, o.sample)
	case o.encodeFiles != "":
		return encodeAll(rt, strings.Split(o.encodeFiles, ","), o.outDir, o.stream, o.layout, log)
	case o.catFile != "":
		return cat(o.catFile, comp, o.layout)
	case o.query != "":
		return printQuery(rt, o.query, o.sample)
	default:
		usage()
		os.Exit(1)
	}
	return nil
}
