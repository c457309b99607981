package directory

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/encode"
	. "github.com/weberc2/simfs/pkg/types"
)

// List returns every valid entry in the root directory in slot order,
// including the self entry.
func List(fs *FileSystem) ([]DirEntry, error) {
	var root Inode
	buf, err := readRoot(fs, &root)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}

	var entries []DirEntry
	for i := 0; i < fs.Superblock.DirEntriesPerBlock(); i++ {
		var entry DirEntry
		encode.DecodeDirEntry(&entry, encode.DirEntryAt(buf, i))
		if entry.Valid {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Open returns the inode number of the entry called `name`.
func Open(fs *FileSystem, name string) (Ino, error) {
	entries, err := List(fs)
	if err != nil {
		return 0, fmt.Errorf("opening `%s`: %w", name, err)
	}
	for _, entry := range entries {
		if entry.Name == name {
			return entry.Ino, nil
		}
	}
	return 0, fmt.Errorf("opening `%s`: %w", name, NotFoundErr)
}

// ValidateName checks that `name` fits in a directory entry with room for
// its terminator.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("validating name: empty name: %w", InvalidArgumentErr)
	case len(name) >= NameMax:
		return fmt.Errorf(
			"validating name `%s`: length `%d` must be less than `%d`: %w",
			name,
			len(name),
			NameMax,
			InvalidArgumentErr,
		)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return fmt.Errorf(
				"validating name `%q`: contains NUL: %w",
				name,
				InvalidArgumentErr,
			)
		}
	}
	return nil
}
