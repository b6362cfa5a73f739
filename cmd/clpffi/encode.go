package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/clp-ffi/client"
)

const defaultLayout = "2006-01-02 15:04:05,000"

// encodeAll writes one IR stream per input, encoding inputs concurrently.
func encodeAll(rt *client.Runtime, inputs []string, outDir string, opts client.StreamOptions, layout string, log *zap.Logger) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.NumCPU())
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		g.Go(func() error {
			out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+rt.Options().Compression.Ext())
			n, err := encodeFile(ctx, rt, in, out, opts, layout)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			log.Info("encoded", zap.String("input", in), zap.String("output", out), zap.Int("events", n))
			fmt.Printf("%s -> %s (%d events)\n", in, out, n)
			return nil
		})
	}
	return g.Wait()
}

func encodeFile(ctx context.Context, rt *client.Runtime, in, out string, opts client.StreamOptions, layout string) (int, error) {
	src, err := os.Open(in)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	w := bufio.NewWriter(dst)
	s, err := rt.NewIrOutputStream(w, opts)
	if err != nil {
		return 0, err
	}

	if err := writeEvents(ctx, s, src, layout); err != nil {
		_ = s.Close()
		return s.Events(), err
	}
	if err := s.Close(); err != nil {
		return s.Events(), err
	}
	return s.Events(), w.Flush()
}

func writeEvents(ctx context.Context, s *client.IrOutputStream, r io.Reader, layout string) error {
	var last int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts, msg := splitTimestamp(scanner.Text(), layout, last)
		if err := s.WriteLogEvent(ts, msg); err != nil {
			return err
		}
		last = ts
	}
	return scanner.Err()
}

// splitTimestamp strips a line-leading timestamp. Lines without one keep
// the previous event's timestamp.
func splitTimestamp(line, layout string, last int64) (int64, string) {
	if layout == "" || len(line) < len(layout) {
		return last, line
	}
	t, err := time.Parse(layout, line[:len(layout)])
	if err != nil {
		return last, line
	}
	return t.UnixMilli(), strings.TrimPrefix(line[len(layout):], " ")
}

func cat(path string, comp client.Compression, layout string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".zst"):
		comp = client.CompressionZstd
	case strings.HasSuffix(path, ".lz4"):
		comp = client.CompressionLZ4
	case strings.HasSuffix(path, ".clp"):
		comp = client.CompressionNone
	}
	r, err := client.NewIrReader(bufio.NewReader(f), comp)
	if err != nil {
		return err
	}
	defer r.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ev.Timestamp != 0 && layout != "" {
			fmt.Fprintf(out, "%s %s\n", time.UnixMilli(ev.Timestamp).UTC().Format(layout), ev.Message)
		} else {
			fmt.Fprintln(out, ev.Message)
		}
	}
}
