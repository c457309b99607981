package directory

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/alloc"
	"github.com/weberc2/simfs/pkg/encode"
	"github.com/weberc2/simfs/pkg/inode"
	. "github.com/weberc2/simfs/pkg/types"
)

// The volume has exactly one directory. Its inode is `InoRoot`, it owns a
// single data block, and slot 0 of that block is the self entry.
const firstSlot = 1

// InitRoot reserves the root inode and a data block for it, writes the self
// entry and then the root inode itself. It expects freshly zeroed bitmaps
// and inode table.
func InitRoot(fs *FileSystem) error {
	if err := alloc.SetInodeBitmap(fs, InoRoot, true); err != nil {
		return fmt.Errorf("initializing root directory: %w", err)
	}
	block, err := alloc.AllocBlock(fs)
	if err != nil {
		return fmt.Errorf("initializing root directory: %w", err)
	}

	buf := make([]byte, fs.Superblock.BlockSize)
	encode.EncodeDirEntry(
		&DirEntry{Name: SelfName, Ino: InoRoot, Valid: true},
		encode.DirEntryAt(buf, 0),
	)
	if err := fs.Device.WriteBlock(block, buf); err != nil {
		return fmt.Errorf("initializing root directory: %w", err)
	}

	now := fs.Now()
	root := Inode{
		Ino:      InoRoot,
		Size:     fs.Superblock.BlockSize,
		FileType: FileTypeDir,
		Used:     true,
		CTime:    now,
		MTime:    now,
	}
	root.DirectBlocks[0] = block
	if err := inode.Put(fs, &root); err != nil {
		return fmt.Errorf("initializing root directory: %w", err)
	}
	return nil
}

// getRoot reads the root inode and checks that it still looks like the
// directory `InitRoot` wrote.
func getRoot(fs *FileSystem, root *Inode) error {
	if err := inode.Get(fs, InoRoot, root); err != nil {
		return fmt.Errorf("reading root directory: %w", err)
	}
	if !root.Used || root.FileType != FileTypeDir {
		return fmt.Errorf(
			"root inode is not a directory (type `%s`, used `%t`): %w",
			root.FileType,
			root.Used,
			CorruptVolumeErr,
		)
	}
	if !fs.Superblock.IsDataBlock(root.DirectBlocks[0]) {
		return fmt.Errorf(
			"root directory block `%d` outside data region: %w",
			root.DirectBlocks[0],
			CorruptVolumeErr,
		)
	}
	return nil
}

// readRoot reads the root inode and its directory block.
func readRoot(fs *FileSystem, root *Inode) ([]byte, error) {
	if err := getRoot(fs, root); err != nil {
		return nil, err
	}
	buf := make([]byte, fs.Superblock.BlockSize)
	if err := fs.Device.ReadBlock(root.DirectBlocks[0], buf); err != nil {
		return nil, fmt.Errorf("reading root directory block: %w", err)
	}
	return buf, nil
}

func writeRoot(fs *FileSystem, root *Inode, buf []byte) error {
	if err := fs.Device.WriteBlock(root.DirectBlocks[0], buf); err != nil {
		return fmt.Errorf("writing root directory block: %w", err)
	}
	return nil
}
