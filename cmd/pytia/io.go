package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"pytia/internal/router"
)

// readQuestions collects non-blank lines. The router skips blanks too, but
// dropping them here keeps the TSV output aligned with the input.
func readQuestions(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func writeTSV(w io.Writer, results []router.QA) error {
	bw := bufio.NewWriter(w)
	for _, qa := range results {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", qa.Question, qa.Answer); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// openInput resolves "-" and "" to stdin. The returned closer is a no-op for
// stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
