package types

const (
	// NameMax bounds directory entry names; a name must be strictly shorter
	// so that it's always NUL-terminated on disk.
	NameMax      = 28
	DirEntrySize = 36

	SelfName = "."
)

type DirEntry struct {
	Name  string
	Ino   Ino
	Valid bool
}
