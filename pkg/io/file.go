package io

import (
	"fmt"
	"os"

	. "github.com/weberc2/simfs/pkg/types"
)

// FileVolume is a `Volume` backed by a host file.
type FileVolume struct {
	File *os.File
}

func (volume FileVolume) ReadAt(offset Byte, buffer []byte) error {
	if _, err := volume.File.ReadAt(buffer, int64(offset)); err != nil {
		// `os.File.ReadAt` reports short reads as `io.EOF`
		return &IOError{
			Op:     fmt.Sprintf("reading file `%s`", volume.File.Name()),
			Offset: offset,
			Err:    err,
		}
	}
	return nil
}

func (volume FileVolume) WriteAt(offset Byte, buffer []byte) error {
	if _, err := volume.File.WriteAt(buffer, int64(offset)); err != nil {
		return &IOError{
			Op:     fmt.Sprintf("writing file `%s`", volume.File.Name()),
			Offset: offset,
			Err:    err,
		}
	}
	return nil
}
