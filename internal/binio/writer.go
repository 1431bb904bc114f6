package binio

import (
	"encoding/binary"
	"io"
)

// Writer wraps an io.Writer and accumulates the first error, mirroring
// Reader so fixture-building tests can write a checkpoint or tokenizer
// file without checking err after every field.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w for sequential little-endian encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error seen by any write on this Writer.
func (bw *Writer) Err() error {
	return bw.err
}

// Header encodes a fixed-layout value with binary.Write.
func (bw *Writer) Header(v any) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}

// Float32s writes each value as little-endian float32.
func (bw *Writer) Float32s(vs []float32) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, vs)
}

// Uint32 writes a single little-endian uint32.
func (bw *Writer) Uint32(v uint32) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}

// Bytes writes raw bytes verbatim.
func (bw *Writer) Bytes(b []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(b)
}
