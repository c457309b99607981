package encode

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	. "github.com/weberc2/simfs/pkg/types"
)

func TestSuperblockLayout(t *testing.T) {
	sb, err := NewSuperblock(&DefaultGeometry, uuid.MustParse(
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	))
	if err != nil {
		t.Fatalf("NewSuperblock(): unexpected error: %v", err)
	}
	sb.FreeBlocks--
	sb.FreeInodes--

	var b [SuperblockSize]byte
	EncodeSuperblock(&sb, &b)

	if string(b[:8]) != "SIMFSv1\x00" {
		t.Fatalf("EncodeSuperblock(): magic: wanted `SIMFSv1\\0`; found `%q`", b[:8])
	}

	// the counters sit at fixed offsets
	for _, field := range []struct {
		name   string
		offset int
		wanted uint32
	}{
		{"block_size", 8, 4096},
		{"total_blocks", 12, 25600},
		{"inode_blocks", 16, 32},
		{"data_blocks", 20, 25565},
		{"total_inodes", 24, 1024},
		{"free_blocks", 28, 25564},
		{"free_inodes", 32, 1023},
		{"block_bitmap", 36, 1},
		{"inode_bitmap", 40, 2},
		{"inode_start", 44, 3},
		{"data_start", 48, 35},
	} {
		found := binary.LittleEndian.Uint32(b[field.offset:])
		if found != field.wanted {
			t.Fatalf(
				"EncodeSuperblock(): %s: wanted `%d`; found `%d`",
				field.name,
				field.wanted,
				found,
			)
		}
	}

	var decoded Superblock
	if err := DecodeSuperblock(&decoded, &b); err != nil {
		t.Fatalf("DecodeSuperblock(): unexpected error: %v", err)
	}
	if diff := cmp.Diff(sb, decoded); diff != "" {
		t.Fatalf("DecodeSuperblock(): mismatch (-wanted +found):\n%s", diff)
	}
}

func TestDecodeSuperblockBadMagic(t *testing.T) {
	for _, magic := range []string{
		"\x00\x00\x00\x00\x00\x00\x00\x00",
		"EXT2FS\x00\x00",
		"SIMFSv1x", // only the terminator differs
	} {
		var b [SuperblockSize]byte
		copy(b[:], magic)

		sb := Superblock{BlockSize: 42}
		err := DecodeSuperblock(&sb, &b)
		if !errors.Is(err, CorruptVolumeErr) {
			t.Fatalf(
				"DecodeSuperblock(%q): wanted `%v`; found `%v`",
				magic,
				CorruptVolumeErr,
				err,
			)
		}
		var bad *BadMagicError
		if !errors.As(err, &bad) || string(bad.Found[:]) != magic {
			t.Fatalf("DecodeSuperblock(%q): wanted *BadMagicError; found `%v`", magic, err)
		}
		if sb.BlockSize != 42 {
			t.Fatalf("DecodeSuperblock(%q): superblock was modified", magic)
		}
	}
}

func TestInodeLayout(t *testing.T) {
	inode := Inode{
		Ino:      7,
		Size:     4097,
		FileType: FileTypeRegular,
		Used:     true,
		CTime:    1700000000,
		MTime:    -1,
	}
	inode.DirectBlocks[0] = 35
	inode.DirectBlocks[15] = 25599

	b := [InodeSize]byte{}
	for i := range b {
		b[i] = 0xff // encoding must clear the padding
	}
	EncodeInode(&inode, &b)

	for _, field := range []struct {
		name   string
		offset int
		wanted uint32
	}{
		{"ino", 0, 7},
		{"size", 4, 4097},
		{"direct_blocks[0]", 8, 35},
		{"direct_blocks[1]", 12, 0},
		{"direct_blocks[15]", 68, 25599},
	} {
		if found := binary.LittleEndian.Uint32(b[field.offset:]); found != field.wanted {
			t.Fatalf(
				"EncodeInode(): %s: wanted `%d`; found `%d`",
				field.name,
				field.wanted,
				found,
			)
		}
	}
	if b[72] != uint8(FileTypeRegular) || b[73] != 1 {
		t.Fatalf("EncodeInode(): type/used: found `%d`/`%d`", b[72], b[73])
	}
	if ctime := binary.LittleEndian.Uint64(b[80:]); ctime != 1700000000 {
		t.Fatalf("EncodeInode(): ctime: wanted `1700000000`; found `%d`", ctime)
	}
	for i := 96; i < len(b); i++ {
		if b[i] != 0 {
			t.Fatalf("EncodeInode(): byte `%d`: wanted `0`; found `%d`", i, b[i])
		}
	}

	var decoded Inode
	if err := DecodeInode(&decoded, &b); err != nil {
		t.Fatalf("DecodeInode(): unexpected error: %v", err)
	}
	if diff := cmp.Diff(inode, decoded); diff != "" {
		t.Fatalf("DecodeInode(): mismatch (-wanted +found):\n%s", diff)
	}
}

func TestDecodeInodeInvalidFileType(t *testing.T) {
	var b [InodeSize]byte
	b[72] = 9

	inode := Inode{Ino: 3}
	if err := DecodeInode(&inode, &b); !errors.Is(err, CorruptVolumeErr) {
		t.Fatalf(
			"DecodeInode(): wanted `%v`; found `%v`",
			CorruptVolumeErr,
			err,
		)
	}
	if inode.Ino != 3 {
		t.Fatalf("DecodeInode(): inode was modified")
	}
}

func TestDirEntry(t *testing.T) {
	type testCase struct {
		name   string
		input  DirEntry
		wanted DirEntry
	}

	for _, tc := range []testCase{{
		name:   "self",
		input:  DirEntry{Name: SelfName, Ino: InoRoot, Valid: true},
		wanted: DirEntry{Name: SelfName, Ino: InoRoot, Valid: true},
	}, {
		name:   "longest-name",
		input:  DirEntry{Name: "abcdefghijklmnopqrstuvwxyz0", Ino: 1023, Valid: true},
		wanted: DirEntry{Name: "abcdefghijklmnopqrstuvwxyz0", Ino: 1023, Valid: true},
	}, {
		// the last name byte is always the terminator
		name:   "truncated",
		input:  DirEntry{Name: "abcdefghijklmnopqrstuvwxyz0123", Ino: 1},
		wanted: DirEntry{Name: "abcdefghijklmnopqrstuvwxyz0", Ino: 1},
	}, {
		name:   "zeroed",
		input:  DirEntry{},
		wanted: DirEntry{},
	}} {
		t.Run(tc.name, func(t *testing.T) {
			var b [DirEntrySize]byte
			EncodeDirEntry(&tc.input, &b)
			if b[NameMax-1] != 0 {
				t.Fatalf("EncodeDirEntry(): name not NUL-terminated")
			}

			var found DirEntry
			DecodeDirEntry(&found, &b)
			if diff := cmp.Diff(tc.wanted, found); diff != "" {
				t.Fatalf("DecodeDirEntry(): mismatch (-wanted +found):\n%s", diff)
			}
		})
	}
}

func TestDirEntryAt(t *testing.T) {
	block := make([]byte, 4096)
	EncodeDirEntry(&DirEntry{Name: "b", Ino: 2, Valid: true}, DirEntryAt(block, 2))

	if block[2*DirEntrySize] != 'b' {
		t.Fatalf("DirEntryAt(2): wanted entry at byte `%d`", 2*DirEntrySize)
	}
	if ino := binary.LittleEndian.Uint32(block[2*DirEntrySize+28:]); ino != 2 {
		t.Fatalf("DirEntryAt(2): ino: wanted `2`; found `%d`", ino)
	}
}
