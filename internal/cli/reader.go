package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// LineReader reads user input line by line, giving up when the context ends.
type LineReader struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex
}

// NewLineReader reads from r and writes prompts to w.
func NewLineReader(r io.Reader, w io.Writer) *LineReader {
	if w == nil {
		w = io.Discard
	}
	return &LineReader{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// ReadLine reads one trimmed line. A final line without a newline is returned
// as-is; EOF with no input is an error.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		value, err := r.reader.ReadString('\n')
		if errors.Is(err, io.EOF) && value != "" {
			err = nil
		}
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		// The read goroutine finishes on its own once input arrives.
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}

// Ask prints prompt and reads the answer, re-asking while it is blank.
func (r *LineReader) Ask(ctx context.Context, prompt string) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return "", err
		}
		answer, err := r.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}
