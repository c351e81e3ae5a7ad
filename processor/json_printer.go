package processor

import (
	"bufio"
	"io"
)

// JSONPrinter writes encoded summaries to File, flushing after each line
// so that progress shows up in pipes. Lines counts what was written.
type JSONPrinter struct {
	In    chan []byte
	Out   chan struct{}
	File  io.Writer
	Error chan error
	Lines int
}

func NewJSONPrinter(file io.Writer, errChan chan error) *JSONPrinter {
	return &JSONPrinter{
		In:    make(chan []byte, 100),
		Out:   make(chan struct{}),
		File:  file,
		Error: errChan,
	}
}

func (jp *JSONPrinter) Run() {
	defer close(jp.Out)

	w := bufio.NewWriter(jp.File)
	for line := range jp.In {
		if _, err := w.Write(line); err != nil {
			jp.Error <- err
			continue
		}
		if err := w.Flush(); err != nil {
			jp.Error <- err
			continue
		}
		jp.Lines++
	}
}
