package gdalservice

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and results cross the worker unix socket as a single
// protobuf encoded Struct; the writer half-closes after sending.

// WriteMessage encodes v and writes it to conn.
func WriteMessage(conn net.Conn, v interface{}) error {
	s, err := EncodeMessage(v)
	if err != nil {
		return err
	}
	outb, err := proto.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode failed: %v", err)
	}
	n, err := conn.Write(outb)
	if err != nil {
		return fmt.Errorf("error writing %d bytes of data: %v", n, err)
	}
	return nil
}

// ReadMessage reads conn to EOF and decodes the message into v.
func ReadMessage(conn io.Reader, v interface{}) error {
	var buf bytes.Buffer
	nr, err := io.Copy(&buf, conn)
	if err != nil {
		return fmt.Errorf("error reading %d bytes of data: %v", nr, err)
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(buf.Bytes(), s); err != nil {
		return fmt.Errorf("error decoding data: %v", err)
	}
	return DecodeMessage(s, v)
}

// RoundTrip sends req over a unix socket connection and reads the result.
func RoundTrip(conn *net.UnixConn, req *ConvertRequest) (*ConvertResult, error) {
	if err := WriteMessage(conn, req); err != nil {
		return nil, err
	}
	if err := conn.CloseWrite(); err != nil {
		return nil, err
	}
	res := &ConvertResult{}
	if err := ReadMessage(conn, res); err != nil {
		return nil, err
	}
	return res, nil
}
