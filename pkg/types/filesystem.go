package types

import "time"

// BlockDevice is the block I/O layer every component goes through.
type BlockDevice interface {
	ReadBlock(block Block, p []byte) error
	WriteBlock(block Block, p []byte) error
	ReadAt(offset Byte, p []byte) error
	WriteAt(offset Byte, p []byte) error
}

// FileSystem is the state of one mounted volume. It's owned by a single
// caller and passed by pointer to each operation; nothing in it is safe for
// concurrent use.
type FileSystem struct {
	Device     BlockDevice
	Superblock Superblock
	TimeFunc   func() time.Time
}

// Now returns the current on-disk timestamp.
func (fs *FileSystem) Now() int64 {
	if fs.TimeFunc == nil {
		return Timestamp(time.Now())
	}
	return Timestamp(fs.TimeFunc())
}
