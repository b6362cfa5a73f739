package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/wippyai/clp-ffi/client"
	"github.com/wippyai/clp-ffi/ffi"
	"github.com/wippyai/clp-ffi/ffi/search"
)

// sampleSet is a log file encoded for matching.
type sampleSet struct {
	messages []string
	logtypes [][]byte
	vars     [][]int64
}

func loadSample(rt *client.Runtime, path string) (*sampleSet, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	enc := rt.MessageEncoder()
	s := &sampleSet{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		m, err := enc.EncodeMessage(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, len(s.messages)+1, err)
		}
		s.messages = append(s.messages, m.Message)
		s.logtypes = append(s.logtypes, m.Logtype)
		s.vars = append(s.vars, m.EncodedVars)
	}
	return s, scanner.Err()
}

// candidates returns the sample rows whose logtype matches the subquery's
// logtype query and whose encoded variables satisfy its wildcard queries.
// Dictionary variables are not checked.
func (s *sampleSet) candidates(rt *client.Runtime, sq *search.Subquery[int64]) (*roaring.Bitmap, error) {
	rows, err := rt.MessageDecoder().MatchingRows(s.logtypes, s.vars, sq)
	if err != nil {
		return nil, err
	}
	if len(sq.EncodedVarWildcardQueries()) == 0 {
		// Messages without encoded variables can still match.
		rows = roaring.New()
		rows.AddRange(0, uint64(len(s.logtypes)))
	}

	pattern := "*" + string(sq.LogtypeQuery) + "*"
	out := roaring.New()
	it := rows.Iterator()
	for it.HasNext() {
		row := it.Next()
		if ffi.WildcardMatch(string(s.logtypes[row]), pattern) {
			out.Add(row)
		}
	}
	return out, nil
}

func printQuery(rt *client.Runtime, query, samplePath string) error {
	subqueries, err := rt.WildcardQueryEncoder().EncodeWildcardQuery(query)
	if err != nil {
		return err
	}
	sample, err := loadSample(rt, samplePath)
	if err != nil {
		return err
	}

	fmt.Printf("%d subqueries for %q\n", len(subqueries), query)
	all := roaring.New()
	for i := range subqueries {
		sq := &subqueries[i]
		fmt.Printf("\n#%d %s\n", i, describeSubquery(sq))
		if sample == nil {
			continue
		}
		rows, err := sample.candidates(rt, sq)
		if err != nil {
			return err
		}
		fmt.Printf("   candidates: %d\n", rows.GetCardinality())
		all.Or(rows)
	}
	if sample != nil {
		fmt.Printf("\n%d of %d sample lines are candidates\n", all.GetCardinality(), len(sample.messages))
		it := all.Iterator()
		for it.HasNext() {
			fmt.Printf("  %s\n", sample.messages[it.Next()])
		}
	}
	return nil
}

// readableLogtype replaces placeholder bytes with their names.
func readableLogtype(logtype []byte) string {
	var b strings.Builder
	for _, c := range logtype {
		if ffi.IsPlaceholder(c) {
			b.WriteString("<" + ffi.VariablePlaceholder(c).String() + ">")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func describeSubquery(sq *search.Subquery[int64]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "logtype %q", readableLogtype(sq.LogtypeQuery))
	if sq.LogtypeQueryContainsWildcards {
		b.WriteString(" (wildcards)")
	}
	if vars := sq.DictVars(); len(vars) > 0 {
		fmt.Fprintf(&b, "\n   dictionary vars: %s", strings.Join(vars, ", "))
	}
	if len(sq.EncodedVars) > 0 {
		fmt.Fprintf(&b, "\n   encoded vars: %v", sq.EncodedVars)
	}
	for _, q := range sq.EncodedVarWildcardQueries() {
		fmt.Fprintf(&b, "\n   %s var matches %q", q.Placeholder, q.Query)
	}
	for _, q := range sq.DictVarWildcardQueries() {
		fmt.Fprintf(&b, "\n   dictionary var matches %q", q.Query)
	}
	return b.String()
}
