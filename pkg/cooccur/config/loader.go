package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/source"
)

// LoadDictionary reads a supplied dictionary.
// Format: one "token id" pair per line; blank lines and # comments skipped.
// The mapping is returned as read; corpus.NewWithDictionary validates it.
func LoadDictionary(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dict := make(map[string]int)
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: want \"token id\", got %q: %w", path, n+1, line, internalerr.ErrInvalidInput)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: id %q: %w", path, n+1, fields[1], internalerr.ErrInvalidInput)
		}
		if _, dup := dict[fields[0]]; dup {
			return nil, fmt.Errorf("%s:%d: token %q listed twice: %w", path, n+1, fields[0], internalerr.ErrInvalidDictionary)
		}
		dict[fields[0]] = id
	}

	return dict, nil
}

// WriteDictionary writes tokens in id order in the format LoadDictionary
// reads.
func WriteDictionary(path string, tokens []string) error {
	var b strings.Builder
	for id, tok := range tokens {
		fmt.Fprintf(&b, "%s %d\n", tok, id)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Stdin is the input path that reads the corpus from standard input.
const Stdin = "-"

// stdin is swapped out by tests.
var stdin io.Reader = os.Stdin

// Open builds a source over the input files, reading Stdin from standard
// input. The returned function closes whatever files are still open and is
// safe to call more than once.
func (in Input) Open() (source.Source, func() error, error) {
	var (
		files []*os.File
		srcs  []source.Source
	)
	closeAll := func() error {
		var first error
		for _, f := range files {
			if err := f.Close(); err != nil && first == nil {
				first = err
			}
		}
		files = nil
		return first
	}

	for n := 0; n < len(in.Paths); n++ {
		p := in.Paths[n]
		if p == Stdin {
			srcs = append(srcs, in.decode(stdin))
			continue
		}
		if in.Format == FormatHTML {
			// HTML files are opened one at a time as they are read.
			end := n + 1
			for end < len(in.Paths) && in.Paths[end] != Stdin {
				end++
			}
			srcs = append(srcs, source.HTMLFiles(in.Paths[n:end]))
			n = end - 1
			continue
		}

		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		srcs = append(srcs, in.decode(f))
	}
	return source.Concat(srcs...), closeAll, nil
}

func (in Input) decode(r io.Reader) source.Source {
	switch in.Format {
	case FormatJSONL:
		return source.JSONL(r, in.Field)
	case FormatHTML:
		return source.HTML(r)
	default:
		return source.Lines(r)
	}
}
