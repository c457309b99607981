package alloc

import (
	"fmt"

	"github.com/weberc2/simfs/pkg/math"
	. "github.com/weberc2/simfs/pkg/types"
)

// FindFreeBlock scans the block bitmap from the start of the data region
// and returns the absolute block number of the first free block. It doesn't
// reserve anything.
func FindFreeBlock(fs *FileSystem) (Block, error) {
	sb := &fs.Superblock
	i, err := findFree(fs, sb.BlockBitmap, uint64(sb.DataBlocks))
	if err != nil {
		return BlockNil, fmt.Errorf("finding free block: %w", err)
	}
	return sb.DataStart + Block(i), nil
}

// FindFreeInode scans the inode bitmap and returns the first free inode.
func FindFreeInode(fs *FileSystem) (Ino, error) {
	sb := &fs.Superblock
	i, err := findFree(fs, sb.InodeBitmap, uint64(sb.TotalInodes))
	if err != nil {
		return 0, fmt.Errorf("finding free inode: %w", err)
	}
	return Ino(i), nil
}

// SetBlockBitmap marks the data block `block` used or free and keeps the
// superblock's free block count in step. Setting a bit to the value it
// already has changes nothing.
func SetBlockBitmap(fs *FileSystem, block Block, used bool) error {
	sb := &fs.Superblock
	if !sb.IsDataBlock(block) {
		return fmt.Errorf(
			"setting block bitmap: block `%d` outside data region "+
				"[`%d`, `%d`): %w",
			block,
			sb.DataStart,
			sb.TotalBlocks,
			InvalidArgumentErr,
		)
	}
	if used && sb.FreeBlocks == 0 {
		return fmt.Errorf(
			"reserving block `%d`: free block count is zero: %w",
			block,
			VolumeFullErr,
		)
	}
	flipped, err := setBit(fs, sb.BlockBitmap, uint64(block-sb.DataStart), used)
	if err != nil {
		return fmt.Errorf("setting block bitmap for block `%d`: %w", block, err)
	}
	if flipped {
		if used {
			sb.FreeBlocks--
		} else {
			sb.FreeBlocks++
		}
	}
	return nil
}

// SetInodeBitmap is `SetBlockBitmap` for the inode bitmap.
func SetInodeBitmap(fs *FileSystem, ino Ino, used bool) error {
	sb := &fs.Superblock
	if ino >= sb.TotalInodes {
		return fmt.Errorf(
			"setting inode bitmap: inode `%d` out of range (`%d` inodes): %w",
			ino,
			sb.TotalInodes,
			InvalidArgumentErr,
		)
	}
	if used && sb.FreeInodes == 0 {
		return fmt.Errorf(
			"reserving inode `%d`: free inode count is zero: %w",
			ino,
			VolumeFullErr,
		)
	}
	flipped, err := setBit(fs, sb.InodeBitmap, uint64(ino), used)
	if err != nil {
		return fmt.Errorf("setting inode bitmap for inode `%d`: %w", ino, err)
	}
	if flipped {
		if used {
			sb.FreeInodes--
		} else {
			sb.FreeInodes++
		}
	}
	return nil
}

// AllocBlock finds and reserves a free data block.
func AllocBlock(fs *FileSystem) (Block, error) {
	block, err := FindFreeBlock(fs)
	if err != nil {
		return BlockNil, err
	}
	if err := SetBlockBitmap(fs, block, true); err != nil {
		return BlockNil, err
	}
	return block, nil
}

// AllocInode finds and reserves a free inode.
func AllocInode(fs *FileSystem) (Ino, error) {
	ino, err := FindFreeInode(fs)
	if err != nil {
		return 0, err
	}
	if err := SetInodeBitmap(fs, ino, true); err != nil {
		return 0, err
	}
	return ino, nil
}

// BlockIsUsed reports the block bitmap's bit for `block`.
func BlockIsUsed(fs *FileSystem, block Block) (bool, error) {
	sb := &fs.Superblock
	if !sb.IsDataBlock(block) {
		return false, fmt.Errorf(
			"checking block bitmap: block `%d` outside data region: %w",
			block,
			InvalidArgumentErr,
		)
	}
	return getBit(fs, sb.BlockBitmap, uint64(block-sb.DataStart))
}

// InodeIsUsed reports the inode bitmap's bit for `ino`.
func InodeIsUsed(fs *FileSystem, ino Ino) (bool, error) {
	sb := &fs.Superblock
	if ino >= sb.TotalInodes {
		return false, fmt.Errorf(
			"checking inode bitmap: inode `%d` out of range: %w",
			ino,
			InvalidArgumentErr,
		)
	}
	return getBit(fs, sb.InodeBitmap, uint64(ino))
}

// CountFreeBlocks recounts the clear bits of the block bitmap.
func CountFreeBlocks(fs *FileSystem) (Block, error) {
	sb := &fs.Superblock
	used, err := countSet(fs, sb.BlockBitmap, uint64(sb.DataBlocks))
	if err != nil {
		return 0, fmt.Errorf("counting free blocks: %w", err)
	}
	return sb.DataBlocks - Block(used), nil
}

// CountFreeInodes recounts the clear bits of the inode bitmap.
func CountFreeInodes(fs *FileSystem) (Ino, error) {
	sb := &fs.Superblock
	used, err := countSet(fs, sb.InodeBitmap, uint64(sb.TotalInodes))
	if err != nil {
		return 0, fmt.Errorf("counting free inodes: %w", err)
	}
	return sb.TotalInodes - Ino(used), nil
}

// UsedBlocks returns every data block the block bitmap marks used, in
// ascending order.
func UsedBlocks(fs *FileSystem) ([]Block, error) {
	sb := &fs.Superblock
	buf := make([]byte, sb.BlockSize)
	perBlock := bitsPerBlock(fs)
	count := uint64(sb.DataBlocks)
	var used []Block
	for base := uint64(0); base < count; base += perBlock {
		block := sb.BlockBitmap + Block(base/perBlock)
		if err := fs.Device.ReadBlock(block, buf); err != nil {
			return nil, fmt.Errorf("reading bitmap block `%d`: %w", block, err)
		}
		limit := math.Min(count-base, perBlock)
		for i := uint64(0); i < limit; i++ {
			if byteIsSet(buf[i/bitsPerByte], uint8(i%bitsPerByte)) {
				used = append(used, sb.DataStart+Block(base+i))
			}
		}
	}
	return used, nil
}

func bitsPerBlock(fs *FileSystem) uint64 {
	return uint64(fs.Superblock.BlockSize) * bitsPerByte
}

func findFree(fs *FileSystem, start Block, count uint64) (uint64, error) {
	buf := make([]byte, fs.Superblock.BlockSize)
	perBlock := bitsPerBlock(fs)
	for base := uint64(0); base < count; base += perBlock {
		block := start + Block(base/perBlock)
		if err := fs.Device.ReadBlock(block, buf); err != nil {
			return 0, fmt.Errorf("reading bitmap block `%d`: %w", block, err)
		}
		if i, ok := bytesFirstZero(buf, count-base); ok {
			return base + i, nil
		}
	}
	return 0, VolumeFullErr
}

func countSet(fs *FileSystem, start Block, count uint64) (uint64, error) {
	buf := make([]byte, fs.Superblock.BlockSize)
	perBlock := bitsPerBlock(fs)
	var total uint64
	for base := uint64(0); base < count; base += perBlock {
		block := start + Block(base/perBlock)
		if err := fs.Device.ReadBlock(block, buf); err != nil {
			return 0, fmt.Errorf("reading bitmap block `%d`: %w", block, err)
		}
		total += bytesCountSet(buf, math.Min(count-base, perBlock))
	}
	return total, nil
}

// bitPos locates bit `index` of the bitmap starting at block `start`.
func bitPos(fs *FileSystem, start Block, index uint64) (Block, Byte, uint8) {
	perBlock := bitsPerBlock(fs)
	inBlock := index % perBlock
	return start + Block(index/perBlock),
		Byte(inBlock / bitsPerByte),
		uint8(inBlock % bitsPerByte)
}

func getBit(fs *FileSystem, start Block, index uint64) (bool, error) {
	block, byteIndex, bit := bitPos(fs, start, index)
	var b [1]byte
	offset := fs.Superblock.BlockOffset(block) + byteIndex
	if err := fs.Device.ReadAt(offset, b[:]); err != nil {
		return false, fmt.Errorf("reading bitmap byte: %w", err)
	}
	return byteIsSet(b[0], bit), nil
}

// setBit does a read-modify-write of the byte holding bit `index` and
// reports whether the bit changed.
func setBit(fs *FileSystem, start Block, index uint64, used bool) (bool, error) {
	block, byteIndex, bit := bitPos(fs, start, index)
	var b [1]byte
	offset := fs.Superblock.BlockOffset(block) + byteIndex
	if err := fs.Device.ReadAt(offset, b[:]); err != nil {
		return false, fmt.Errorf("reading bitmap byte: %w", err)
	}
	if byteIsSet(b[0], bit) == used {
		return false, nil
	}
	if used {
		b[0] = byteSetHigh(b[0], bit)
	} else {
		b[0] = byteSetLow(b[0], bit)
	}
	if err := fs.Device.WriteAt(offset, b[:]); err != nil {
		return false, fmt.Errorf("writing bitmap byte: %w", err)
	}
	return true, nil
}
