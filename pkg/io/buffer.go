package io

import (
	"fmt"
	"io"

	"github.com/weberc2/simfs/pkg/math"
	. "github.com/weberc2/simfs/pkg/types"
)

// Buffer is an in-memory `Volume`. It's fixed-size: transfers that run past
// the end fail without copying anything.
type Buffer struct {
	data []byte
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) ReadAt(offset Byte, p []byte) error {
	if err := b.check("reading", offset, p); err != nil {
		return err
	}
	copy(p, b.data[offset:])
	return nil
}

func (b *Buffer) WriteAt(offset Byte, p []byte) error {
	if err := b.check("writing", offset, p); err != nil {
		return err
	}
	copy(b.data[offset:], p)
	return nil
}

func (b *Buffer) check(op string, offset Byte, p []byte) error {
	available := math.Max(Byte(len(b.data))-offset, 0)
	if offset < 0 || available < Byte(len(p)) {
		return &IOError{
			Op:     fmt.Sprintf("%s `%d` bytes from buffer", op, len(p)),
			Offset: offset,
			Err:    io.ErrUnexpectedEOF,
		}
	}
	return nil
}
