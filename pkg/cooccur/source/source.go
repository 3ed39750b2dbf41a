// Package source adapts corpus inputs to the pull-based document stream
// consumed by a corpus pass.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
)

// Document yields the tokens of one document in order. It may be ranged over
// at most once.
type Document = iter.Seq[string]

// Source yields documents in order. Next returns io.EOF once the corpus is
// exhausted. A Document must be fully consumed (or abandoned) before the
// next call to Next.
type Source interface {
	Next(ctx context.Context) (Document, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (Document, error)

// Next implements Source.
func (f Func) Next(ctx context.Context) (Document, error) { return f(ctx) }

// FromSlices serves an in-memory corpus.
func FromSlices(docs [][]string) Source {
	i := 0
	return Func(func(ctx context.Context) (Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(docs) {
			return nil, io.EOF
		}
		doc := docs[i]
		i++
		return slices.Values(doc), nil
	})
}

// Lines reads one document per line, tokens separated by whitespace. Blank
// lines are empty documents.
func Lines(r io.Reader) Source {
	sc := newLineScanner(r)
	return Func(func(ctx context.Context) (Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read line: %w", err)
			}
			return nil, io.EOF
		}
		return strings.FieldsSeq(sc.Text()), nil
	})
}

// JSONL reads one JSON object per line and uses the string array stored
// under field as the document's tokens. Blank lines are skipped.
func JSONL(r io.Reader, field string) Source {
	sc := newLineScanner(r)
	lineNo := 0
	return Func(func(ctx context.Context) (Document, error) {
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
				}
				return nil, io.EOF
			}
			lineNo++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}

			var rec map[string]json.RawMessage
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			var tokens []string
			if raw, ok := rec[field]; ok {
				if err := json.Unmarshal(raw, &tokens); err != nil {
					return nil, fmt.Errorf("line %d: field %q: %w", lineNo, field, err)
				}
			}
			return slices.Values(tokens), nil
		}
	})
}

// Concat serves the documents of each source in turn.
func Concat(srcs ...Source) Source {
	return Func(func(ctx context.Context) (Document, error) {
		for len(srcs) > 0 {
			doc, err := srcs[0].Next(ctx)
			if err == io.EOF {
				srcs = srcs[1:]
				continue
			}
			return doc, err
		}
		return nil, io.EOF
	})
}

// Collect drains src into memory. It is meant for tests and small corpora.
func Collect(ctx context.Context, src Source) ([][]string, error) {
	var out [][]string
	for {
		doc, err := src.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, slices.Collect(doc))
	}
}

// lineScanner splits r into lines of any length. Unlike bufio.Scanner it has
// no token size limit, so one document may be as long as the input.
type lineScanner struct {
	r    *bufio.Reader
	line string
	err  error
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next line, dropping its "\n" or "\r\n" terminator.
func (l *lineScanner) Scan() bool {
	if l.err != nil {
		return false
	}
	line, err := l.r.ReadString('\n')
	if err != nil {
		l.err = err
		if err != io.EOF || line == "" {
			return false
		}
	}
	line = strings.TrimSuffix(line, "\n")
	l.line = strings.TrimSuffix(line, "\r")
	return true
}

func (l *lineScanner) Text() string { return l.line }

// Err returns the first non-EOF read error.
func (l *lineScanner) Err() error {
	if l.err == io.EOF {
		return nil
	}
	return l.err
}
