package processor

import (
	"bytes"
	"encoding/json"

	pb "github.com/nci/swathgrid/worker/gdalservice"
)

// JSONEncoder renders one summary line per converted granule.
type JSONEncoder struct {
	In    chan *pb.ConvertResult
	Out   chan []byte
	Error chan error
}

func NewJSONEncoder(errChan chan error) *JSONEncoder {
	return &JSONEncoder{
		In:    make(chan *pb.ConvertResult, 100),
		Out:   make(chan []byte, 100),
		Error: errChan,
	}
}

func (jp *JSONEncoder) Run() {
	defer close(jp.Out)

	for res := range jp.In {
		buf := new(bytes.Buffer)
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(res); err != nil {
			jp.Error <- err
			continue
		}
		jp.Out <- buf.Bytes()
	}
}
