package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// lineReader reads input lines on its own goroutine so a blocked read does not
// hold up shutdown.
type lineReader struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
	err   error
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(lr.lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lr.lines <- sc.Text():
			case <-lr.done:
				return
			}
		}
		lr.err = sc.Err()
	}()
	return lr
}

// Close stops delivering lines. A read already blocked in r is abandoned; the
// goroutine exits as soon as it returns.
func (lr *lineReader) Close() {
	lr.once.Do(func() { close(lr.done) })
}

// Next returns the next line, io.EOF at end of input, or ctx's error.
func (lr *lineReader) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return "", lr.err
			}
			return "", io.EOF
		}
		return line, nil
	}
}

// splitCommand splits "verb rest of line" into its verb and trimmed remainder.
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
