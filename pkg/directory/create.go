package directory

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/alloc"
	"github.com/weberc2/simfs/pkg/encode"
	"github.com/weberc2/simfs/pkg/inode"
	. "github.com/weberc2/simfs/pkg/types"
)

// Create adds an empty regular file called `name` to the root directory and
// returns its inode number. The directory slot is found before an inode is
// reserved, and the inode is released again if anything after that fails.
func Create(fs *FileSystem, name string) (Ino, error) {
	if err := ValidateName(name); err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}

	var root Inode
	buf, err := readRoot(fs, &root)
	if err != nil {
		return 0, fmt.Errorf("creating `%s`: %w", name, err)
	}

	slot := -1
	for i := 0; i < fs.Superblock.DirEntriesPerBlock(); i++ {
		var entry DirEntry
		encode.DecodeDirEntry(&entry, encode.DirEntryAt(buf, i))
		if entry.Valid {
			if entry.Name == name {
				return 0, fmt.Errorf("creating `%s`: %w", name, AlreadyExistsErr)
			}
		} else if slot < 0 && i >= firstSlot {
			slot = i
		}
	}
	if slot < 0 {
		return 0, fmt.Errorf(
			"creating `%s`: directory full (`%d` entries): %w",
			name,
			fs.Superblock.DirEntriesPerBlock()-firstSlot,
			VolumeFullErr,
		)
	}

	ino, err := alloc.AllocInode(fs)
	if err != nil {
		return 0, fmt.Errorf("creating `%s`: %w", name, err)
	}

	if err := link(fs, &root, buf, slot, name, ino); err != nil {
		if rbErr := release(fs, ino); rbErr != nil {
			return 0, fmt.Errorf(
				"creating `%s`: %w (releasing inode `%d`: %v)",
				name,
				err,
				ino,
				rbErr,
			)
		}
		return 0, fmt.Errorf("creating `%s`: %w", name, err)
	}
	return ino, nil
}

// link initializes inode `ino` as an empty file and points directory slot
// `slot` at it.
func link(
	fs *FileSystem,
	root *Inode,
	buf []byte,
	slot int,
	name string,
	ino Ino,
) error {
	now := fs.Now()
	if err := inode.Put(fs, &Inode{
		Ino:      ino,
		FileType: FileTypeRegular,
		Used:     true,
		CTime:    now,
		MTime:    now,
	}); err != nil {
		return err
	}

	encode.EncodeDirEntry(
		&DirEntry{Name: name, Ino: ino, Valid: true},
		encode.DirEntryAt(buf, slot),
	)
	if err := writeRoot(fs, root, buf); err != nil {
		return err
	}

	root.MTime = now
	if err := inode.Put(fs, root); err != nil {
		// the entry is already on disk; take it back out
		encode.EncodeDirEntry(&DirEntry{}, encode.DirEntryAt(buf, slot))
		if wrErr := writeRoot(fs, root, buf); wrErr != nil {
			return fmt.Errorf("%w (unlinking: %v)", err, wrErr)
		}
		return err
	}
	return nil
}

func release(fs *FileSystem, ino Ino) error {
	if err := inode.Reset(fs, ino); err != nil {
		return err
	}
	return alloc.SetInodeBitmap(fs, ino, false)
}
