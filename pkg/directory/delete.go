package directory

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/alloc"
	"github.com/weberc2/simfs/pkg/encode"
	"github.com/weberc2/simfs/pkg/inode"
	. "github.com/weberc2/simfs/pkg/types"
)

// Delete removes the entry called `name` and frees its inode and every data
// block the inode points at. Pointers that are already free, or that don't
// point into the data region at all, are skipped rather than treated as
// errors. The self entry can't be deleted.
func Delete(fs *FileSystem, name string) error {
	var root Inode
	buf, err := readRoot(fs, &root)
	if err != nil {
		return fmt.Errorf("deleting `%s`: %w", name, err)
	}

	slot := -1
	var entry DirEntry
	for i := firstSlot; i < fs.Superblock.DirEntriesPerBlock(); i++ {
		encode.DecodeDirEntry(&entry, encode.DirEntryAt(buf, i))
		if entry.Valid && entry.Name == name {
			slot = i
			break
		}
	}
	if slot < 0 {
		return fmt.Errorf("deleting `%s`: %w", name, NotFoundErr)
	}
	if entry.Ino == InoRoot || entry.Ino >= fs.Superblock.TotalInodes {
		return fmt.Errorf(
			"deleting `%s`: entry points at inode `%d`: %w",
			name,
			entry.Ino,
			CorruptVolumeErr,
		)
	}

	var target Inode
	if err := inode.Get(fs, entry.Ino, &target); err != nil {
		return fmt.Errorf("deleting `%s`: %w", name, err)
	}

	encode.EncodeDirEntry(&DirEntry{}, encode.DirEntryAt(buf, slot))
	if err := writeRoot(fs, &root, buf); err != nil {
		return fmt.Errorf("deleting `%s`: %w", name, err)
	}

	for _, block := range target.DirectBlocks {
		if !fs.Superblock.IsDataBlock(block) {
			continue
		}
		if err := alloc.SetBlockBitmap(fs, block, false); err != nil {
			return fmt.Errorf("deleting `%s`: %w", name, err)
		}
	}
	if err := release(fs, entry.Ino); err != nil {
		return fmt.Errorf("deleting `%s`: %w", name, err)
	}

	root.MTime = fs.Now()
	if err := inode.Put(fs, &root); err != nil {
		return fmt.Errorf("deleting `%s`: %w", name, err)
	}
	return nil
}
