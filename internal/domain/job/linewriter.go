package job

import (
	"bytes"
	"io"
	"sync"
)

// LineWriter reassembles arbitrarily chunked output into complete lines.
//
// Bytes up to each '\n' are emitted as one line; the unterminated tail is carried
// into the next Write. A '\r' inside a line discards what preceded it, so progress
// bars that redraw in place leave only their final state. Write never fails and
// never blocks on anything but the emit callback.
type LineWriter struct {
	mu    sync.Mutex
	emit  func(line string)
	carry []byte
}

// NewLineWriter returns a writer that hands every completed line to emit.
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{emit: emit}
}

// Write implements io.Writer. It always reports len(p) bytes written.
func (w *LineWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	if len(w.carry) > 0 {
		data = append(w.carry, p...)
	}
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.emitLine(data[:i])
		data = data[i+1:]
	}
	w.carry = append(w.carry[:0:0], data...)
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (w *LineWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush emits the carried partial line, if any.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.carry) == 0 {
		return
	}
	w.emitLine(w.carry)
	w.carry = nil
}

func (w *LineWriter) emitLine(raw []byte) {
	line := bytes.TrimRight(raw, "\r")
	if i := bytes.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	if len(line) == 0 {
		return
	}
	defer func() {
		// A failing sink loses the line, not the job.
		_ = recover()
	}()
	w.emit(string(line))
}

var (
	_ io.Writer       = (*LineWriter)(nil)
	_ io.StringWriter = (*LineWriter)(nil)
)
