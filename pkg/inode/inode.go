package inode

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/encode"
	. "github.com/weberc2/simfs/pkg/types"
)

// Get reads inode `ino` from the inode table into `out`. The slot is read
// as-is: callers decide whether an unused inode is an error.
func Get(fs *FileSystem, ino Ino, out *Inode) error {
	if err := checkRange(fs, ino); err != nil {
		return fmt.Errorf("reading inode: %w", err)
	}
	var b [InodeSize]byte
	if err := fs.Device.ReadAt(fs.Superblock.InodeOffset(ino), b[:]); err != nil {
		return fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	if err := encode.DecodeInode(out, &b); err != nil {
		return fmt.Errorf("reading inode `%d`: %w", ino, err)
	}

	// the record's own number is redundant; the slot is authoritative
	out.Ino = ino
	return nil
}

// Put writes `inode` to its slot in the inode table.
func Put(fs *FileSystem, inode *Inode) error {
	if err := checkRange(fs, inode.Ino); err != nil {
		return fmt.Errorf("writing inode: %w", err)
	}
	var b [InodeSize]byte
	encode.EncodeInode(inode, &b)
	if err := fs.Device.WriteAt(fs.Superblock.InodeOffset(inode.Ino), b[:]); err != nil {
		return fmt.Errorf("writing inode `%d`: %w", inode.Ino, err)
	}
	return nil
}

// Reset overwrites slot `ino` with an unused, empty inode.
func Reset(fs *FileSystem, ino Ino) error {
	return Put(fs, &Inode{Ino: ino})
}

// GetFile reads `ino` and checks that it's a used regular file.
func GetFile(fs *FileSystem, ino Ino, out *Inode) error {
	if err := Get(fs, ino, out); err != nil {
		return err
	}
	if !out.Used {
		return fmt.Errorf("inode `%d` is unused: %w", ino, NotFoundErr)
	}
	if out.FileType != FileTypeRegular {
		return fmt.Errorf(
			"inode `%d` has type `%s`, not a file: %w",
			ino,
			out.FileType,
			InvalidArgumentErr,
		)
	}
	return nil
}

func checkRange(fs *FileSystem, ino Ino) error {
	if ino >= fs.Superblock.TotalInodes {
		return fmt.Errorf(
			"inode `%d` out of range (`%d` inodes): %w",
			ino,
			fs.Superblock.TotalInodes,
			InvalidArgumentErr,
		)
	}
	return nil
}
