package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/weberc2/simfs/pkg/math"
)

const (
	MagicSize = 8

	// SuperblockBlock is where the superblock lives. It occupies the whole
	// block even though the encoded record is much smaller.
	SuperblockBlock Block = 0

	DefaultDiskSize  Byte = 100 * 1024 * 1024
	DefaultBlockSize Byte = 4096
	DefaultInodes    Ino  = 1024

	MinBlockSize Byte = 128
	MaxBlockSize Byte = 64 * 1024
)

// Magic identifies a formatted image. All eight bytes are significant.
var Magic = [MagicSize]byte{'S', 'I', 'M', 'F', 'S', 'v', '1', 0}

// Superblock describes the geometry of a volume and its allocation
// counters. Region sizes are fixed at format time.
type Superblock struct {
	Magic       [MagicSize]byte
	BlockSize   Byte
	TotalBlocks Block
	InodeBlocks Block
	DataBlocks  Block
	TotalInodes Ino
	FreeBlocks  Block
	FreeInodes  Ino
	BlockBitmap Block
	InodeBitmap Block
	InodeStart  Block
	DataStart   Block
	UUID        uuid.UUID
}

// Geometry holds the capacity constants a volume is formatted with.
type Geometry struct {
	DiskSize  Byte
	BlockSize Byte
	Inodes    Ino
}

var DefaultGeometry = Geometry{
	DiskSize:  DefaultDiskSize,
	BlockSize: DefaultBlockSize,
	Inodes:    DefaultInodes,
}

func (g *Geometry) Validate() error {
	if g.BlockSize < MinBlockSize ||
		g.BlockSize > MaxBlockSize ||
		g.BlockSize&(g.BlockSize-1) != 0 {
		return fmt.Errorf(
			"validating geometry: block size `%d` must be a power of two "+
				"between `%d` and `%d`: %w",
			g.BlockSize,
			MinBlockSize,
			MaxBlockSize,
			InvalidArgumentErr,
		)
	}
	if g.Inodes < 2 {
		return fmt.Errorf(
			"validating geometry: need at least `2` inodes; found `%d`: %w",
			g.Inodes,
			InvalidArgumentErr,
		)
	}
	if blocks := g.DiskSize / g.BlockSize; blocks > Byte(^Block(0)) {
		return fmt.Errorf(
			"validating geometry: disk size `%d` needs `%d` blocks, more "+
				"than a block pointer can address: %w",
			g.DiskSize,
			blocks,
			InvalidArgumentErr,
		)
	}
	sb := layout(g)
	if sb.DataStart >= sb.TotalBlocks {
		return fmt.Errorf(
			"validating geometry: disk size `%d` leaves no data blocks: %w",
			g.DiskSize,
			InvalidArgumentErr,
		)
	}
	return nil
}

// NewSuperblock lays out a fresh volume for `g`. Every data block and every
// inode starts out free; reserving the root is the formatter's job.
func NewSuperblock(g *Geometry, id uuid.UUID) (Superblock, error) {
	if err := g.Validate(); err != nil {
		return Superblock{}, err
	}
	sb := layout(g)
	sb.UUID = id
	return sb, nil
}

func layout(g *Geometry) Superblock {
	const superblockBlocks Block = 1
	bitsPerBlock := g.BlockSize * 8
	totalBlocks := Block(g.DiskSize / g.BlockSize)
	blockBitmapBlocks := Block(math.DivRoundUp(Byte(totalBlocks), bitsPerBlock))
	inodeBitmapBlocks := Block(math.DivRoundUp(Byte(g.Inodes), bitsPerBlock))
	inodeBlocks := Block(math.DivRoundUp(Byte(g.Inodes)*InodeSize, g.BlockSize))

	sb := Superblock{
		Magic:       Magic,
		BlockSize:   g.BlockSize,
		TotalBlocks: totalBlocks,
		InodeBlocks: inodeBlocks,
		TotalInodes: g.Inodes,
		FreeInodes:  g.Inodes,
		BlockBitmap: superblockBlocks,
	}
	sb.InodeBitmap = sb.BlockBitmap + blockBitmapBlocks
	sb.InodeStart = sb.InodeBitmap + inodeBitmapBlocks
	sb.DataStart = sb.InodeStart + inodeBlocks
	if sb.DataStart < totalBlocks {
		sb.DataBlocks = totalBlocks - sb.DataStart
	}
	sb.FreeBlocks = sb.DataBlocks
	return sb
}

// Validate checks the invariants a mounted superblock must satisfy before
// any of its offsets are trusted.
func (sb *Superblock) Validate() error {
	if sb.Magic != Magic {
		return &BadMagicError{Found: sb.Magic}
	}
	g := Geometry{
		DiskSize:  Byte(sb.TotalBlocks) * sb.BlockSize,
		BlockSize: sb.BlockSize,
		Inodes:    sb.TotalInodes,
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validating superblock: %v: %w", err, CorruptVolumeErr)
	}
	if !(SuperblockBlock < sb.BlockBitmap &&
		sb.BlockBitmap < sb.InodeBitmap &&
		sb.InodeBitmap < sb.InodeStart &&
		sb.InodeStart < sb.DataStart &&
		sb.DataStart < sb.TotalBlocks) {
		return fmt.Errorf(
			"validating superblock: regions out of order (block bitmap "+
				"`%d`, inode bitmap `%d`, inode table `%d`, data `%d`, "+
				"total `%d`): %w",
			sb.BlockBitmap,
			sb.InodeBitmap,
			sb.InodeStart,
			sb.DataStart,
			sb.TotalBlocks,
			CorruptVolumeErr,
		)
	}
	bitsPerBlock := sb.BlockSize * 8
	switch {
	case sb.DataBlocks != sb.TotalBlocks-sb.DataStart:
		return sb.corrupt("data block count `%d`", sb.DataBlocks)
	case Byte(sb.InodeBitmap-sb.BlockBitmap)*bitsPerBlock < Byte(sb.DataBlocks):
		return sb.corrupt("block bitmap too small for `%d` blocks", sb.DataBlocks)
	case Byte(sb.InodeStart-sb.InodeBitmap)*bitsPerBlock < Byte(sb.TotalInodes):
		return sb.corrupt("inode bitmap too small for `%d` inodes", sb.TotalInodes)
	case sb.InodeBlocks != sb.DataStart-sb.InodeStart:
		return sb.corrupt("inode block count `%d`", sb.InodeBlocks)
	case Byte(sb.InodeBlocks)*sb.BlockSize < Byte(sb.TotalInodes)*InodeSize:
		return sb.corrupt("inode table too small for `%d` inodes", sb.TotalInodes)
	case sb.FreeBlocks > sb.DataBlocks:
		return sb.corrupt("free block count `%d`", sb.FreeBlocks)
	case sb.FreeInodes > sb.TotalInodes:
		return sb.corrupt("free inode count `%d`", sb.FreeInodes)
	}
	return nil
}

func (sb *Superblock) corrupt(format string, args ...interface{}) error {
	return fmt.Errorf(
		"validating superblock: %s: %w",
		fmt.Sprintf(format, args...),
		CorruptVolumeErr,
	)
}

// BlockOffset returns the byte offset of `block` within the image.
func (sb *Superblock) BlockOffset(block Block) Byte {
	return Byte(block) * sb.BlockSize
}

func (sb *Superblock) InodeOffset(ino Ino) Byte {
	return sb.BlockOffset(sb.InodeStart) + Byte(ino)*InodeSize
}

func (sb *Superblock) ImageSize() Byte {
	return sb.BlockOffset(sb.TotalBlocks)
}

// IsDataBlock reports whether `block` lies in the data region.
func (sb *Superblock) IsDataBlock(block Block) bool {
	return block >= sb.DataStart && block < sb.TotalBlocks
}

func (sb *Superblock) DirEntriesPerBlock() int {
	return int(sb.BlockSize / DirEntrySize)
}

func (sb *Superblock) MaxFileSize() Byte {
	return MaxFileSize(sb.BlockSize)
}

func (sb *Superblock) Info() VolumeInfo {
	return VolumeInfo{
		Magic:       string(sb.Magic[:MagicSize-1]),
		UUID:        sb.UUID,
		BlockSize:   sb.BlockSize,
		TotalBlocks: sb.TotalBlocks,
		DataBlocks:  sb.DataBlocks,
		FreeBlocks:  sb.FreeBlocks,
		UsedBlocks:  sb.DataBlocks - sb.FreeBlocks,
		TotalInodes: sb.TotalInodes,
		FreeInodes:  sb.FreeInodes,
		UsedInodes:  sb.TotalInodes - sb.FreeInodes,
		TotalBytes:  sb.ImageSize(),
		UsedBytes:   Byte(sb.DataBlocks-sb.FreeBlocks) * sb.BlockSize,
		FreeBytes:   Byte(sb.FreeBlocks) * sb.BlockSize,
		MaxFileSize: sb.MaxFileSize(),
		MaxFiles:    sb.DirEntriesPerBlock() - 1,
	}
}
