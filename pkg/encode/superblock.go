package encode

import (
	"fmt"

	"github.com/google/uuid"
	. "github.com/weberc2/simfs/pkg/types"
)

// EncodeSuperblock writes `sb` into `b`: the magic, eleven u32 counters
// and offsets, then the volume UUID.
func EncodeSuperblock(sb *Superblock, b *[SuperblockSize]byte) {
	p := b[:]
	copy(p[sbMagicStart:sbMagicEnd], sb.Magic[:])
	putU32(p, sbBlockSizeStart, uint32(sb.BlockSize))
	putBlock(p, sbTotalBlocksStart, sb.TotalBlocks)
	putBlock(p, sbInodeBlocksStart, sb.InodeBlocks)
	putBlock(p, sbDataBlocksStart, sb.DataBlocks)
	putIno(p, sbTotalInodesStart, sb.TotalInodes)
	putBlock(p, sbFreeBlocksStart, sb.FreeBlocks)
	putIno(p, sbFreeInodesStart, sb.FreeInodes)
	putBlock(p, sbBlockBitmapStart, sb.BlockBitmap)
	putBlock(p, sbInodeBitmapStart, sb.InodeBitmap)
	putBlock(p, sbInodeStartStart, sb.InodeStart)
	putBlock(p, sbDataStartStart, sb.DataStart)
	copy(p[sbUUIDStart:sbUUIDEnd], sb.UUID[:])
}

// DecodeSuperblock populates `sb` from `b`. A magic mismatch leaves `sb`
// untouched and returns a `*BadMagicError`.
func DecodeSuperblock(sb *Superblock, b *[SuperblockSize]byte) error {
	p := b[:]
	var magic [MagicSize]byte
	copy(magic[:], p[sbMagicStart:sbMagicEnd])
	if magic != Magic {
		return fmt.Errorf(
			"decoding superblock: %w",
			&BadMagicError{Found: magic},
		)
	}

	id, err := uuid.FromBytes(p[sbUUIDStart:sbUUIDEnd])
	if err != nil {
		return fmt.Errorf("decoding superblock uuid: %w", err)
	}

	*sb = Superblock{
		Magic:       magic,
		BlockSize:   Byte(getU32(p, sbBlockSizeStart)),
		TotalBlocks: getBlock(p, sbTotalBlocksStart),
		InodeBlocks: getBlock(p, sbInodeBlocksStart),
		DataBlocks:  getBlock(p, sbDataBlocksStart),
		TotalInodes: getIno(p, sbTotalInodesStart),
		FreeBlocks:  getBlock(p, sbFreeBlocksStart),
		FreeInodes:  getIno(p, sbFreeInodesStart),
		BlockBitmap: getBlock(p, sbBlockBitmapStart),
		InodeBitmap: getBlock(p, sbInodeBitmapStart),
		InodeStart:  getBlock(p, sbInodeStartStart),
		DataStart:   getBlock(p, sbDataStartStart),
		UUID:        id,
	}
	return nil
}

const (
	sbMagicStart Byte = 0
	sbMagicSize  Byte = MagicSize
	sbMagicEnd        = sbMagicStart + sbMagicSize

	sbBlockSizeStart   = sbMagicEnd
	sbTotalBlocksStart = sbBlockSizeStart + 4
	sbInodeBlocksStart = sbTotalBlocksStart + 4
	sbDataBlocksStart  = sbInodeBlocksStart + 4
	sbTotalInodesStart = sbDataBlocksStart + 4
	sbFreeBlocksStart  = sbTotalInodesStart + 4
	sbFreeInodesStart  = sbFreeBlocksStart + 4
	sbBlockBitmapStart = sbFreeInodesStart + 4
	sbInodeBitmapStart = sbBlockBitmapStart + 4
	sbInodeStartStart  = sbInodeBitmapStart + 4
	sbDataStartStart   = sbInodeStartStart + 4
	sbDataStartEnd     = sbDataStartStart + 4

	sbUUIDStart = sbDataStartEnd
	sbUUIDSize  = 16
	sbUUIDEnd   = sbUUIDStart + sbUUIDSize

	SuperblockSize = sbUUIDEnd
)
