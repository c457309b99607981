package types

// Byte is a byte count or a byte offset into the image.
type Byte int64

// Block is an absolute block number within the image. Block 0 always holds
// the superblock, so a zero block pointer in an inode means "unallocated".
type Block uint32

const (
	BlockNil         Block = 0
	BlockPointerSize Byte  = 4
)
