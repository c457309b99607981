package volume

import (
	"fmt"
	"os"

	"github.com/weberc2/simfs/pkg/encode"
	"github.com/weberc2/simfs/pkg/io"
	. "github.com/weberc2/simfs/pkg/types"
)

func writeSuperblock(fs *FileSystem) error {
	var b [encode.SuperblockSize]byte
	encode.EncodeSuperblock(&fs.Superblock, &b)
	if err := fs.Device.WriteAt(fs.Superblock.BlockOffset(SuperblockBlock), b[:]); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// ReadSuperblock reads and validates the superblock of the image open as
// `file`, without mounting it.
func ReadSuperblock(file *os.File) (Superblock, error) {
	stat, err := file.Stat()
	if err != nil {
		return Superblock{}, fmt.Errorf("reading superblock: %w", err)
	}
	if stat.Size() < int64(encode.SuperblockSize) {
		return Superblock{}, fmt.Errorf(
			"reading superblock: image is only `%d` bytes: %w",
			stat.Size(),
			CorruptVolumeErr,
		)
	}

	var b [encode.SuperblockSize]byte
	if err := (io.FileVolume{File: file}).ReadAt(0, b[:]); err != nil {
		return Superblock{}, fmt.Errorf("reading superblock: %w", err)
	}
	var sb Superblock
	if err := encode.DecodeSuperblock(&sb, &b); err != nil {
		return Superblock{}, fmt.Errorf("reading superblock: %w", err)
	}
	if err := sb.Validate(); err != nil {
		return Superblock{}, fmt.Errorf("reading superblock: %w", err)
	}
	if Byte(stat.Size()) < sb.ImageSize() {
		return Superblock{}, fmt.Errorf(
			"reading superblock: image is `%d` bytes; superblock needs `%d`: %w",
			stat.Size(),
			sb.ImageSize(),
			CorruptVolumeErr,
		)
	}
	return sb, nil
}
