package io

import (
	. "github.com/weberc2/simfs/pkg/types"
)

type ReadAt interface {
	ReadAt(offset Byte, b []byte) error
}

type WriteAt interface {
	WriteAt(offset Byte, p []byte) error
}

// Volume is a flat byte-addressed store that a block device sits on top of.
// Reads and writes are all-or-nothing: a short transfer is an error.
type Volume interface {
	ReadAt
	WriteAt
}
