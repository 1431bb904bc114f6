// Package binio reads the fixed little-endian binary layouts used by the
// checkpoint and tokenizer files: a struct-shaped header, flat runs of
// float32/uint32, and length-prefixed byte strings.
package binio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader wraps an io.Reader and accumulates the first error encountered,
// so a load routine can chain many small reads without checking err after
// every call.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader wraps r for sequential little-endian decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error seen by any read on this Reader.
func (br *Reader) Err() error {
	return br.err
}

// Header decodes a fixed-layout value (typically a struct of int32/uint32
// fields) from the front of the stream.
func (br *Reader) Header(v any) {
	if br.err != nil {
		return
	}
	br.err = binary.Read(br.r, binary.LittleEndian, v)
}

// Float32s reads n little-endian float32 values into a freshly allocated,
// owned slice.
func (br *Reader) Float32s(n int) []float32 {
	if br.err != nil || n == 0 {
		return nil
	}
	buf := make([]byte, n*4)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = fmt.Errorf("read %d float32s: %w", n, err)
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// Uint32s reads n little-endian uint32 values into a freshly allocated,
// owned slice.
func (br *Reader) Uint32s(n int) []uint32 {
	if br.err != nil || n == 0 {
		return nil
	}
	buf := make([]byte, n*4)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = fmt.Errorf("read %d uint32s: %w", n, err)
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}

// Skip discards n float32 slots without allocating a result buffer; used
// for the legacy RoPE table in the checkpoint format.
func (br *Reader) Skip(n int) {
	if br.err != nil || n == 0 {
		return
	}
	if _, err := io.CopyN(io.Discard, br.r, int64(n*4)); err != nil {
		br.err = fmt.Errorf("skip %d float32s: %w", n, err)
	}
}

// Bytes reads n raw bytes and returns them as a string.
func (br *Reader) Bytes(n int) string {
	if br.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = fmt.Errorf("read %d bytes: %w", n, err)
		return ""
	}
	return string(buf)
}

// Remaining reads every remaining byte of the stream as float32 values.
// Returns an error if the remaining byte count is not a multiple of 4.
func (br *Reader) Remaining() ([]float32, error) {
	if br.err != nil {
		return nil, br.err
	}
	buf, err := io.ReadAll(br.r)
	if err != nil {
		return nil, fmt.Errorf("read remaining bytes: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("trailing %d bytes do not form whole float32s", len(buf)%4)
	}
	n := len(buf) / 4
	out := make([]float32, n)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
