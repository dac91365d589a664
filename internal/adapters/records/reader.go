package records

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
)

const maxLine = 4 * 1024 * 1024

// lineReader streams JSON lines from a plain or gzip compressed file
type lineReader struct {
	r    io.ReadCloser
	gz   *gzip.Reader
	sc   *bufio.Scanner
	line int
}

func newLineReader(r io.ReadCloser, compressed bool) (*lineReader, error) {
	lr := &lineReader{r: r}
	var src io.Reader = r
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		lr.gz = gz
		src = gz
	}
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	lr.sc = sc
	return lr, nil
}

// Next decodes the next non blank line into w and returns its 1 based line number
// a malformed line returns its decode error and reading may continue
// io.EOF ends the stream
func (lr *lineReader) Next(w *Wire) (int, error) {
	for lr.sc.Scan() {
		lr.line++
		b := bytes.TrimSpace(lr.sc.Bytes())
		if len(b) == 0 {
			continue
		}
		*w = Wire{}
		if err := json.Unmarshal(b, w); err != nil {
			return lr.line, err
		}
		return lr.line, nil
	}
	if err := lr.sc.Err(); err != nil {
		return lr.line, err
	}
	return lr.line, io.EOF
}

func (lr *lineReader) Close() error {
	var first error
	if lr.gz != nil {
		if err := lr.gz.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			first = err
		}
	}
	if err := lr.r.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
