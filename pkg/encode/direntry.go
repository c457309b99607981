package encode

import (
	"bytes"

	. "github.com/weberc2/simfs/pkg/types"
)

func EncodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]
	*b = [DirEntrySize]byte{}
	copy(p[dirEntryNameStart:dirEntryNameEnd-1], entry.Name)
	putIno(p, dirEntryInoStart, entry.Ino)
	putBool(p, dirEntryValidStart, entry.Valid)
}

// DecodeDirEntry doesn't validate anything: a zeroed or invalidated slot is a
// perfectly normal thing to find in a directory block.
func DecodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]
	name := p[dirEntryNameStart:dirEntryNameEnd]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	*entry = DirEntry{
		Name:  string(name),
		Ino:   getIno(p, dirEntryInoStart),
		Valid: getBool(p, dirEntryValidStart),
	}
}

// DirEntryAt returns the `i`th entry slot of a directory block.
func DirEntryAt(block []byte, i int) *[DirEntrySize]byte {
	start := i * DirEntrySize
	return (*[DirEntrySize]byte)(block[start : start+DirEntrySize])
}

const (
	dirEntryNameStart Byte = 0
	dirEntryNameSize  Byte = NameMax
	dirEntryNameEnd        = dirEntryNameStart + dirEntryNameSize

	dirEntryInoStart = dirEntryNameEnd
	dirEntryInoSize  = 4
	dirEntryInoEnd   = dirEntryInoStart + dirEntryInoSize

	dirEntryValidStart = dirEntryInoEnd
	dirEntryValidSize  = 1
	dirEntryValidEnd   = dirEntryValidStart + dirEntryValidSize
)

var _ [DirEntrySize - dirEntryValidEnd]struct{} // record must fit its slot
