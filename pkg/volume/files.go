package volume

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/data"
	"github.com/weberc2/simfs/pkg/directory"
	"github.com/weberc2/simfs/pkg/inode"
	. "github.com/weberc2/simfs/pkg/types"
)

// Create adds an empty file called `name` and returns its inode number.
func (v *Volume) Create(name string) (Ino, error) {
	fs, err := v.fileSystem("creating file")
	if err != nil {
		return 0, err
	}
	return directory.Create(fs, name)
}

// Open returns the inode number of the file called `name`.
func (v *Volume) Open(name string) (Ino, error) {
	fs, err := v.fileSystem("opening file")
	if err != nil {
		return 0, err
	}
	return directory.Open(fs, name)
}

// Read copies bytes of file `ino` starting at `offset` into `p` and returns
// how many it copied. It copies nothing at or past the end of the file.
func (v *Volume) Read(ino Ino, offset Byte, p []byte) (Byte, error) {
	fs, err := v.fileSystem("reading file")
	if err != nil {
		return 0, err
	}
	return data.Read(fs, ino, offset, p)
}

// Write stores `p` in file `ino` at `offset` and returns how many bytes it
// stored. A short count without an error means the file hit its size
// ceiling or the volume ran out of blocks.
func (v *Volume) Write(ino Ino, offset Byte, p []byte) (Byte, error) {
	fs, err := v.fileSystem("writing file")
	if err != nil {
		return 0, err
	}
	return data.Write(fs, ino, offset, p)
}

// Delete removes the file called `name` and frees its inode and blocks.
func (v *Volume) Delete(name string) error {
	fs, err := v.fileSystem("deleting file")
	if err != nil {
		return err
	}
	return directory.Delete(fs, name)
}

// List returns the files in the directory in slot order. The directory's
// own entry isn't included.
func (v *Volume) List() ([]DirEntry, error) {
	fs, err := v.fileSystem("listing files")
	if err != nil {
		return nil, err
	}
	entries, err := directory.List(fs)
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, entry := range entries {
		if entry.Ino != InoRoot {
			files = append(files, entry)
		}
	}
	return files, nil
}

// Stat returns the inode of file `ino`.
func (v *Volume) Stat(ino Ino) (Inode, error) {
	fs, err := v.fileSystem("stat")
	if err != nil {
		return Inode{}, err
	}
	var file Inode
	if err := inode.GetFile(fs, ino, &file); err != nil {
		return Inode{}, fmt.Errorf("stat: %w", err)
	}
	return file, nil
}
