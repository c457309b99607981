package data

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/weberc2/simfs/pkg/alloc"
	"github.com/weberc2/simfs/pkg/directory"
	"github.com/weberc2/simfs/pkg/inode"
	"github.com/weberc2/simfs/pkg/io"
	. "github.com/weberc2/simfs/pkg/types"
)

const blockSize Byte = 512

// newFile returns a filesystem with `blocks` total blocks and one empty
// file in it.
func newFile(t *testing.T, blocks Block) (*FileSystem, Ino) {
	t.Helper()
	sb, err := NewSuperblock(&Geometry{
		DiskSize:  Byte(blocks) * blockSize,
		BlockSize: blockSize,
		Inodes:    16,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("NewSuperblock(): unexpected error: %v", err)
	}
	fs := &FileSystem{
		Device:     io.NewDevice(io.NewBuffer(make([]byte, sb.ImageSize())), &sb),
		Superblock: sb,
	}
	if err := directory.InitRoot(fs); err != nil {
		t.Fatalf("InitRoot(): unexpected error: %v", err)
	}
	ino, err := directory.Create(fs, "file")
	if err != nil {
		t.Fatalf("Create(): unexpected error: %v", err)
	}
	return fs, ino
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte('a' + i%26)
	}
	return p
}

func mustWrite(t *testing.T, fs *FileSystem, ino Ino, offset Byte, p []byte) {
	t.Helper()
	n, err := Write(fs, ino, offset, p)
	if err != nil {
		t.Fatalf("Write(%d): unexpected error: %v", offset, err)
	}
	if n != Byte(len(p)) {
		t.Fatalf("Write(%d): wanted `%d` bytes; found `%d`", offset, len(p), n)
	}
}

func readAll(t *testing.T, fs *FileSystem, ino Ino, offset, size Byte) []byte {
	t.Helper()
	p := make([]byte, size)
	n, err := Read(fs, ino, offset, p)
	if err != nil {
		t.Fatalf("Read(%d, %d): unexpected error: %v", offset, size, err)
	}
	return p[:n]
}

func fileSize(t *testing.T, fs *FileSystem, ino Ino) Byte {
	t.Helper()
	var file Inode
	if err := inode.GetFile(fs, ino, &file); err != nil {
		t.Fatalf("GetFile(): unexpected error: %v", err)
	}
	return file.Size
}

func TestWriteRead(t *testing.T) {
	type testCase struct {
		name   string
		offset Byte
		data   []byte
	}

	for _, tc := range []testCase{
		{name: "hello", offset: 0, data: []byte("hello")},
		{name: "one-block", offset: 0, data: pattern(int(blockSize))},
		{name: "unaligned-span", offset: 500, data: pattern(1000)},
		{name: "last-block", offset: 15 * blockSize, data: pattern(int(blockSize))},
		{name: "whole-file", offset: 0, data: pattern(int(16 * blockSize))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs, ino := newFile(t, 64)
			mustWrite(t, fs, ino, tc.offset, tc.data)

			found := readAll(t, fs, ino, tc.offset, Byte(len(tc.data)))
			if !bytes.Equal(tc.data, found) {
				t.Fatalf("Read(): wanted `%q`; found `%q`", tc.data, found)
			}
			if wanted := tc.offset + Byte(len(tc.data)); fileSize(t, fs, ino) != wanted {
				t.Fatalf("size: wanted `%d`; found `%d`", wanted, fileSize(t, fs, ino))
			}
			checkCounts(t, fs)
		})
	}
}

func TestWriteZeroFillsNewBlocks(t *testing.T) {
	fs, ino := newFile(t, 64)

	// dirty a block, free it, and make sure the file doesn't see the old
	// contents when it reuses it
	block, err := alloc.AllocBlock(fs)
	if err != nil {
		t.Fatalf("AllocBlock(): unexpected error: %v", err)
	}
	if err := fs.Device.WriteBlock(block, bytes.Repeat([]byte{0xee}, int(blockSize))); err != nil {
		t.Fatalf("WriteBlock(): unexpected error: %v", err)
	}
	if err := alloc.SetBlockBitmap(fs, block, false); err != nil {
		t.Fatalf("SetBlockBitmap(): unexpected error: %v", err)
	}

	mustWrite(t, fs, ino, 10, []byte("x"))
	found := readAll(t, fs, ino, 0, 11)
	wanted := append(make([]byte, 10), 'x')
	if !bytes.Equal(wanted, found) {
		t.Fatalf("Read(): wanted `%q`; found `%q`", wanted, found)
	}
}

func TestOverwrite(t *testing.T) {
	fs, ino := newFile(t, 64)
	mustWrite(t, fs, ino, 0, []byte("hello, world"))
	mustWrite(t, fs, ino, 7, []byte("WORLD"))
	mustWrite(t, fs, ino, 0, []byte("J"))

	if found := readAll(t, fs, ino, 0, 100); string(found) != "Jello, WORLD" {
		t.Fatalf("Read(): wanted `Jello, WORLD`; found `%s`", found)
	}
	if size := fileSize(t, fs, ino); size != 12 {
		t.Fatalf("size: wanted `12`; found `%d`", size)
	}
}

func TestWriteCeiling(t *testing.T) {
	fs, ino := newFile(t, 64)
	ceiling := 16 * blockSize

	n, err := Write(fs, ino, ceiling-1, []byte("abc"))
	if err != nil {
		t.Fatalf("Write(): unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Write(): wanted `1` byte; found `%d`", n)
	}
	if size := fileSize(t, fs, ino); size != ceiling {
		t.Fatalf("size: wanted `%d`; found `%d`", ceiling, size)
	}
	if found := readAll(t, fs, ino, ceiling-1, 10); string(found) != "a" {
		t.Fatalf("Read(): wanted `a`; found `%q`", found)
	}

	for _, offset := range []Byte{ceiling, ceiling + 1, -1} {
		n, err := Write(fs, ino, offset, []byte("abc"))
		if n != 0 || !errors.Is(err, InvalidArgumentErr) {
			t.Fatalf(
				"Write(%d): wanted `0, %v`; found `%d, %v`",
				offset,
				InvalidArgumentErr,
				n,
				err,
			)
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	fs, ino := newFile(t, 64)
	before := fs.Superblock.FreeBlocks
	n, err := Write(fs, ino, 100, nil)
	if n != 0 || err != nil {
		t.Fatalf("Write(): wanted `0, <nil>`; found `%d, %v`", n, err)
	}
	if size := fileSize(t, fs, ino); size != 0 {
		t.Fatalf("size: wanted `0`; found `%d`", size)
	}
	if fs.Superblock.FreeBlocks != before {
		t.Fatalf("Write(): allocated blocks for an empty write")
	}
}

func TestWriteVolumeFull(t *testing.T) {
	// 16 blocks leaves 9 data blocks, one of which is the root's
	fs, ino := newFile(t, 16)
	free := fs.Superblock.FreeBlocks
	if free != 8 {
		t.Fatalf("geometry: wanted `8` free blocks; found `%d`", free)
	}

	data := pattern(int(16 * blockSize))
	n, err := Write(fs, ino, 0, data)
	if err != nil {
		t.Fatalf("Write(): unexpected error: %v", err)
	}
	if wanted := Byte(free) * blockSize; n != wanted {
		t.Fatalf("Write(): wanted `%d` bytes; found `%d`", wanted, n)
	}
	if fs.Superblock.FreeBlocks != 0 {
		t.Fatalf("FreeBlocks: wanted `0`; found `%d`", fs.Superblock.FreeBlocks)
	}

	n, err = Write(fs, ino, n, []byte("more"))
	if n != 0 || !errors.Is(err, VolumeFullErr) {
		t.Fatalf("Write(): wanted `0, %v`; found `%d, %v`", VolumeFullErr, n, err)
	}
	if size := fileSize(t, fs, ino); size != Byte(free)*blockSize {
		t.Fatalf("size: wanted `%d`; found `%d`", Byte(free)*blockSize, size)
	}

	// existing blocks can still be overwritten
	mustWrite(t, fs, ino, 0, []byte("still"))
	checkCounts(t, fs)
}

func TestReadBounds(t *testing.T) {
	fs, ino := newFile(t, 64)

	if found := readAll(t, fs, ino, 0, 10); len(found) != 0 {
		t.Fatalf("Read(): empty file: wanted nothing; found `%q`", found)
	}

	mustWrite(t, fs, ino, 0, []byte("hello"))
	for _, tc := range []struct {
		offset, size Byte
		wanted       string
	}{
		{offset: 0, size: 100, wanted: "hello"},
		{offset: 1, size: 3, wanted: "ell"},
		{offset: 4, size: 5, wanted: "o"},
		{offset: 5, size: 5, wanted: ""},
		{offset: 1000, size: 5, wanted: ""},
		{offset: 0, size: 0, wanted: ""},
	} {
		if found := readAll(t, fs, ino, tc.offset, tc.size); string(found) != tc.wanted {
			t.Fatalf(
				"Read(%d, %d): wanted `%s`; found `%s`",
				tc.offset,
				tc.size,
				tc.wanted,
				found,
			)
		}
	}
}

func TestReadStopsAtHole(t *testing.T) {
	fs, ino := newFile(t, 64)
	mustWrite(t, fs, ino, 2*blockSize, []byte("x"))

	if found := readAll(t, fs, ino, 0, 10); len(found) != 0 {
		t.Fatalf("Read(): wanted nothing before the hole; found `%q`", found)
	}
	if found := readAll(t, fs, ino, 2*blockSize, 10); string(found) != "x" {
		t.Fatalf("Read(): wanted `x`; found `%q`", found)
	}
}

func TestInvalidInode(t *testing.T) {
	fs, _ := newFile(t, 64)
	p := make([]byte, 1)
	for _, tc := range []struct {
		ino    Ino
		wanted error
	}{
		{ino: InoRoot, wanted: InvalidArgumentErr},
		{ino: 7, wanted: NotFoundErr},
		{ino: 1 << 20, wanted: InvalidArgumentErr},
	} {
		if _, err := Read(fs, tc.ino, 0, p); !errors.Is(err, tc.wanted) {
			t.Fatalf("Read(%d): wanted `%v`; found `%v`", tc.ino, tc.wanted, err)
		}
		if _, err := Write(fs, tc.ino, 0, p); !errors.Is(err, tc.wanted) {
			t.Fatalf("Write(%d): wanted `%v`; found `%v`", tc.ino, tc.wanted, err)
		}
	}
}

func checkCounts(t *testing.T, fs *FileSystem) {
	t.Helper()
	free, err := alloc.CountFreeBlocks(fs)
	if err != nil {
		t.Fatalf("CountFreeBlocks(): unexpected error: %v", err)
	}
	if free != fs.Superblock.FreeBlocks {
		t.Fatalf(
			"free blocks: bitmap says `%d`; superblock says `%d`",
			free,
			fs.Superblock.FreeBlocks,
		)
	}
}
