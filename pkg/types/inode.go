package types

import (
	"fmt"
	"time"
)

type Ino uint32

const (
	DirectBlocksCount      = 16
	InodeSize         Byte = 128
	InoRoot           Ino  = 0
)

type Inode struct {
	Ino          Ino
	Size         Byte
	DirectBlocks [DirectBlocksCount]Block
	FileType     FileType
	Used         bool
	CTime        int64
	MTime        int64
}

// MaxFileSize is the largest size a file can reach with `blockSize` blocks.
// There are no indirect blocks, so bytes past this are never stored.
func MaxFileSize(blockSize Byte) Byte {
	return DirectBlocksCount * blockSize
}

type FileType uint8

const (
	FileTypeInvalid FileType = iota
	FileTypeRegular
	FileTypeDir
)

func (ft FileType) String() string {
	switch ft {
	case FileTypeInvalid:
		return "Invalid"
	case FileTypeRegular:
		return "Regular"
	case FileTypeDir:
		return "Dir"
	default:
		return fmt.Sprintf("FileType(%d)", uint8(ft))
	}
}

func (ft FileType) MarshalJSON() ([]byte, error) {
	s := ft.String()
	out := make([]byte, len(s)+2)
	out[0] = '"'
	out[len(out)-1] = '"'
	copy(out[1:], s)
	return out, nil
}

// Validate checks that `ft` is a type that can appear on disk. Unused inode
// slots carry `FileTypeInvalid`, so that's accepted too.
func (ft FileType) Validate() error {
	if ft > FileTypeDir {
		return fmt.Errorf(
			"validating file type `%d`: %w",
			ft,
			CorruptVolumeErr,
		)
	}
	return nil
}

// Timestamp converts `t` into the on-disk representation (Unix seconds).
func Timestamp(t time.Time) int64 { return t.Unix() }
