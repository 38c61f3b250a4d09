package answers

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const readBufferSize = 64 * 1024

// lineReader splits a body into '\n' terminated lines. Lines longer than
// maxLength are consumed and reported as too long instead of ending the
// read, so one oversized line never loses the lines after it.
type lineReader struct {
	reader    *bufio.Reader
	maxLength int
	line      []byte
}

func newLineReader(body io.Reader, maxLength int) *lineReader {
	return &lineReader{
		reader:    bufio.NewReaderSize(body, readBufferSize),
		maxLength: maxLength,
	}
}

// next returns the next line without its line ending. The returned slice is
// only valid until the following call. It returns io.EOF once the body is
// consumed.
func (r *lineReader) next() (line []byte, tooLong bool, err error) {
	r.line = r.line[:0]
	for {
		fragment, readErr := r.reader.ReadSlice('\n')
		if !tooLong {
			r.line = append(r.line, fragment...)
			if len(bytes.TrimRight(r.line, "\r\n")) > r.maxLength {
				tooLong = true
				r.line = r.line[:0]
			}
		}

		switch {
		case readErr == nil:
			return r.result(tooLong)
		case errors.Is(readErr, bufio.ErrBufferFull):
			continue
		case errors.Is(readErr, io.EOF):
			if tooLong || len(r.line) > 0 {
				return r.result(tooLong)
			}
			return nil, false, io.EOF
		default:
			return nil, false, readErr
		}
	}
}

func (r *lineReader) result(tooLong bool) ([]byte, bool, error) {
	if tooLong {
		return nil, true, nil
	}
	return bytes.TrimRight(r.line, "\r\n"), false, nil
}
