package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// HTMLFiles serves one document per HTML file: the whitespace-separated
// words of its text nodes, outside script and style elements. Files are
// opened when their document is ranged over, and a read failure is reported
// by the following call to Next.
func HTMLFiles(paths []string) Source {
	return &htmlFiles{paths: paths}
}

type htmlFiles struct {
	paths []string
	next  int
	err   error
}

func (h *htmlFiles) Next(ctx context.Context) (Document, error) {
	if h.err != nil {
		return nil, h.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.next >= len(h.paths) {
		return nil, io.EOF
	}
	path := h.paths[h.next]
	h.next++

	return func(yield func(string) bool) {
		f, err := os.Open(path)
		if err != nil {
			h.err = fmt.Errorf("open %s: %w", path, err)
			return
		}
		defer f.Close()
		if err := htmlWords(f, yield); err != nil {
			h.err = fmt.Errorf("parse %s: %w", path, err)
		}
	}, nil
}

// HTML serves r as a single document.
func HTML(r io.Reader) Source {
	done := false
	var readErr error
	return Func(func(ctx context.Context) (Document, error) {
		if readErr != nil {
			return nil, readErr
		}
		if done {
			return nil, io.EOF
		}
		done = true
		return func(yield func(string) bool) {
			readErr = htmlWords(r, yield)
		}, nil
	})
}

// htmlWords streams the words of r's text content to yield. It returns nil
// when yield stops early.
func htmlWords(r io.Reader, yield func(string) bool) error {
	z := html.NewTokenizer(r)
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil
		case html.StartTagToken:
			if isRawText(z) {
				skip++
			}
		case html.EndTagToken:
			if isRawText(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			for w := range strings.FieldsSeq(string(z.Text())) {
				if !yield(w) {
					return nil
				}
			}
		}
	}
}

func isRawText(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "noscript":
		return true
	}
	return false
}
