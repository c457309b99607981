package encode

import (
	"fmt"

	. "github.com/weberc2/simfs/pkg/types"
)

func EncodeInode(inode *Inode, b *[InodeSize]byte) {
	p := b[:]
	*b = [InodeSize]byte{}

	putIno(p, inodeInoStart, inode.Ino)
	putU32(p, inodeSizeStart, uint32(inode.Size))
	for i, block := range inode.DirectBlocks {
		putBlock(p, inodeDirectBlocksStart+Byte(i)*BlockPointerSize, block)
	}
	p[inodeFileTypeStart] = uint8(inode.FileType)
	putBool(p, inodeUsedStart, inode.Used)
	putI64(p, inodeCTimeStart, inode.CTime)
	putI64(p, inodeMTimeStart, inode.MTime)
}

func DecodeInode(inode *Inode, b *[InodeSize]byte) error {
	p := b[:]

	// validate before touching `inode` so a failed decode leaves it intact
	ft := FileType(p[inodeFileTypeStart])
	if err := ft.Validate(); err != nil {
		return fmt.Errorf("decoding inode: %w", err)
	}

	*inode = Inode{
		Ino:      getIno(p, inodeInoStart),
		Size:     Byte(getU32(p, inodeSizeStart)),
		FileType: ft,
		Used:     getBool(p, inodeUsedStart),
		CTime:    getI64(p, inodeCTimeStart),
		MTime:    getI64(p, inodeMTimeStart),
	}
	for i := range inode.DirectBlocks {
		inode.DirectBlocks[i] = getBlock(
			p,
			inodeDirectBlocksStart+Byte(i)*BlockPointerSize,
		)
	}
	return nil
}

const (
	inodeInoStart Byte = 0
	inodeInoSize  Byte = 4
	inodeInoEnd        = inodeInoStart + inodeInoSize

	inodeSizeStart = inodeInoEnd
	inodeSizeSize  = 4
	inodeSizeEnd   = inodeSizeStart + inodeSizeSize

	inodeDirectBlocksStart = inodeSizeEnd
	inodeDirectBlocksSize  = DirectBlocksCount * BlockPointerSize
	inodeDirectBlocksEnd   = inodeDirectBlocksStart + inodeDirectBlocksSize

	inodeFileTypeStart = inodeDirectBlocksEnd
	inodeFileTypeSize  = 1
	inodeFileTypeEnd   = inodeFileTypeStart + inodeFileTypeSize

	inodeUsedStart = inodeFileTypeEnd
	inodeUsedSize  = 1
	inodeUsedEnd   = inodeUsedStart + inodeUsedSize

	// timestamps are 8-byte aligned
	inodeCTimeStart = inodeUsedEnd + 6
	inodeCTimeSize  = 8
	inodeCTimeEnd   = inodeCTimeStart + inodeCTimeSize

	inodeMTimeStart = inodeCTimeEnd
	inodeMTimeSize  = 8
	inodeMTimeEnd   = inodeMTimeStart + inodeMTimeSize
)

var _ [InodeSize - inodeMTimeEnd]struct{} // record must fit its slot
