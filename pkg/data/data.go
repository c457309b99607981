// Package data maps byte ranges of a file onto its direct block pointers.
// There are no indirect blocks, so a file never grows past
// `DirectBlocksCount` blocks; bytes past that ceiling are never stored.
package data

import (
	"errors"
	"fmt"

	"github.com/weberc2/simfs/pkg/alloc"
	"github.com/weberc2/simfs/pkg/inode"
	"github.com/weberc2/simfs/pkg/math"
	. "github.com/weberc2/simfs/pkg/types"
)

// Read copies up to `len(p)` bytes of file `ino` starting at `offset` into
// `p` and returns how many bytes it copied. Reading at or past the end of
// the file copies nothing and isn't an error. An unallocated block ends the
// readable data.
func Read(fs *FileSystem, ino Ino, offset Byte, p []byte) (Byte, error) {
	var file Inode
	if err := inode.GetFile(fs, ino, &file); err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	if offset < 0 {
		return 0, fmt.Errorf(
			"reading file `%d`: negative offset `%d`: %w",
			ino,
			offset,
			InvalidArgumentErr,
		)
	}
	if offset >= file.Size {
		return 0, nil
	}
	length := math.Min(Byte(len(p)), file.Size-offset)

	bs := fs.Superblock.BlockSize
	buf := make([]byte, bs)
	var done Byte
	for done < length {
		pos := offset + done
		index := pos / bs
		if index >= DirectBlocksCount {
			break
		}
		block := file.DirectBlocks[index]
		if block == BlockNil {
			break
		}
		if err := checkPointer(fs, &file, block); err != nil {
			return done, fmt.Errorf("reading file `%d`: %w", ino, err)
		}
		if err := fs.Device.ReadBlock(block, buf); err != nil {
			return done, fmt.Errorf("reading file `%d`: %w", ino, err)
		}
		done += Byte(copy(p[done:length], buf[pos%bs:]))
	}
	return done, nil
}

// Write stores `data` in file `ino` at `offset`, allocating zero-filled
// blocks for any holes it touches, and returns how many bytes it stored.
//
// Storing fewer bytes than requested isn't an error when the write ran into
// the direct block ceiling or the volume filled up part way through; callers
// compare the count against `len(data)`. A non-empty write that stores
// nothing at all fails. The file's size becomes the larger of its old size
// and the end of the stored range.
func Write(fs *FileSystem, ino Ino, offset Byte, data []byte) (Byte, error) {
	var file Inode
	if err := inode.GetFile(fs, ino, &file); err != nil {
		return 0, fmt.Errorf("writing file: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	if offset < 0 || offset >= fs.Superblock.MaxFileSize() {
		return 0, fmt.Errorf(
			"writing file `%d`: offset `%d` outside [`0`, `%d`): %w",
			ino,
			offset,
			fs.Superblock.MaxFileSize(),
			InvalidArgumentErr,
		)
	}

	bs := fs.Superblock.BlockSize
	buf := make([]byte, bs)
	length := Byte(len(data))
	var done Byte
	var stopErr error
	dirty := false
	for done < length {
		pos := offset + done
		index := pos / bs
		if index >= DirectBlocksCount {
			break
		}

		block := file.DirectBlocks[index]
		if block == BlockNil {
			b, err := alloc.AllocBlock(fs)
			if err != nil {
				stopErr = err
				break
			}
			block = b
			file.DirectBlocks[index] = block
			dirty = true
			for i := range buf {
				buf[i] = 0
			}
		} else {
			if err := checkPointer(fs, &file, block); err != nil {
				stopErr = err
				break
			}
			if err := fs.Device.ReadBlock(block, buf); err != nil {
				stopErr = err
				break
			}
		}

		n := Byte(copy(buf[pos%bs:], data[done:]))
		if err := fs.Device.WriteBlock(block, buf); err != nil {
			stopErr = err
			break
		}
		done += n
	}

	if done > 0 || dirty {
		if done > 0 {
			file.Size = math.Max(file.Size, offset+done)
		}
		file.MTime = fs.Now()
		if err := inode.Put(fs, &file); err != nil {
			return done, fmt.Errorf("writing file `%d`: %w", ino, err)
		}
	}

	switch {
	case stopErr == nil:
		return done, nil
	case done > 0 && errors.Is(stopErr, VolumeFullErr):
		return done, nil
	default:
		return done, fmt.Errorf("writing file `%d`: %w", ino, stopErr)
	}
}

func checkPointer(fs *FileSystem, file *Inode, block Block) error {
	if !fs.Superblock.IsDataBlock(block) {
		return fmt.Errorf(
			"inode `%d` points at block `%d` outside the data region: %w",
			file.Ino,
			block,
			CorruptVolumeErr,
		)
	}
	return nil
}
