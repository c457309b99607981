package volume

import (
	"errors"
	"fmt"

	"github.com/weberc2/simfs/pkg/alloc"
	"github.com/weberc2/simfs/pkg/directory"
	"github.com/weberc2/simfs/pkg/inode"
	. "github.com/weberc2/simfs/pkg/types"
)

// Report is the outcome of `Check`. Problems are descriptions of each
// inconsistency found; an empty list means the volume is consistent.
type Report struct {
	FreeBlocks       Block    `json:"freeBlocks"`
	BitmapFreeBlocks Block    `json:"bitmapFreeBlocks"`
	FreeInodes       Ino      `json:"freeInodes"`
	BitmapFreeInodes Ino      `json:"bitmapFreeInodes"`
	Files            int      `json:"files"`
	Problems         []string `json:"problems"`
}

func (r *Report) OK() bool { return len(r.Problems) == 0 }

func (r *Report) problemf(format string, args ...interface{}) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Check cross-references the superblock counters, both bitmaps, the inode
// table and the directory, and reports every disagreement it finds. It
// doesn't repair anything. An error is returned only when the check itself
// couldn't run.
func (v *Volume) Check() (Report, error) {
	fs, err := v.fileSystem("checking volume")
	if err != nil {
		return Report{}, err
	}
	sb := &fs.Superblock
	report := Report{FreeBlocks: sb.FreeBlocks, FreeInodes: sb.FreeInodes}

	if report.BitmapFreeBlocks, err = alloc.CountFreeBlocks(fs); err != nil {
		return Report{}, fmt.Errorf("checking volume: %w", err)
	}
	if report.BitmapFreeInodes, err = alloc.CountFreeInodes(fs); err != nil {
		return Report{}, fmt.Errorf("checking volume: %w", err)
	}
	if report.FreeBlocks != report.BitmapFreeBlocks {
		report.problemf(
			"superblock has `%d` free blocks; bitmap has `%d`",
			report.FreeBlocks,
			report.BitmapFreeBlocks,
		)
	}
	if report.FreeInodes != report.BitmapFreeInodes {
		report.problemf(
			"superblock has `%d` free inodes; bitmap has `%d`",
			report.FreeInodes,
			report.BitmapFreeInodes,
		)
	}

	owners, files, err := checkInodes(fs, &report)
	if err != nil {
		return Report{}, fmt.Errorf("checking volume: %w", err)
	}

	used, err := alloc.UsedBlocks(fs)
	if err != nil {
		return Report{}, fmt.Errorf("checking volume: %w", err)
	}
	for _, block := range used {
		if _, owned := owners[block]; !owned {
			report.problemf("block `%d` is marked used but no inode owns it", block)
		}
	}

	if err := checkDirectory(fs, files, &report); err != nil {
		return Report{}, fmt.Errorf("checking volume: %w", err)
	}
	return report, nil
}

// checkInodes walks the inode table. It returns the owner of every block an
// inode points at and the set of used regular files.
func checkInodes(fs *FileSystem, report *Report) (map[Block]Ino, map[Ino]bool, error) {
	sb := &fs.Superblock
	owners := map[Block]Ino{}
	files := map[Ino]bool{}
	for ino := Ino(0); ino < sb.TotalInodes; ino++ {
		var node Inode
		if err := inode.Get(fs, ino, &node); err != nil {
			if errors.Is(err, CorruptVolumeErr) {
				report.problemf("inode `%d`: %v", ino, err)
				continue
			}
			return nil, nil, err
		}
		bit, err := alloc.InodeIsUsed(fs, ino)
		if err != nil {
			return nil, nil, err
		}
		if node.Used != bit {
			report.problemf(
				"inode `%d` used flag is `%t` but its bitmap bit is `%t`",
				ino,
				node.Used,
				bit,
			)
		}
		if !node.Used {
			continue
		}

		switch {
		case ino == InoRoot && node.FileType != FileTypeDir:
			report.problemf("root inode has type `%s`", node.FileType)
		case ino != InoRoot && node.FileType != FileTypeRegular:
			report.problemf("inode `%d` has type `%s`", ino, node.FileType)
		case ino != InoRoot:
			files[ino] = false
		}
		if node.Size > sb.MaxFileSize() {
			report.problemf(
				"inode `%d` size `%d` exceeds the `%d` byte ceiling",
				ino,
				node.Size,
				sb.MaxFileSize(),
			)
		}

		for i, block := range node.DirectBlocks {
			if block == BlockNil {
				continue
			}
			if !sb.IsDataBlock(block) {
				report.problemf(
					"inode `%d` block pointer `%d` is `%d`, outside the data region",
					ino,
					i,
					block,
				)
				continue
			}
			if owner, dup := owners[block]; dup {
				report.problemf(
					"block `%d` is claimed by inodes `%d` and `%d`",
					block,
					owner,
					ino,
				)
				continue
			}
			owners[block] = ino
			used, err := alloc.BlockIsUsed(fs, block)
			if err != nil {
				return nil, nil, err
			}
			if !used {
				report.problemf(
					"inode `%d` points at block `%d` but it's marked free",
					ino,
					block,
				)
			}
		}
	}
	return owners, files, nil
}

// checkDirectory matches directory entries against the used files found by
// `checkInodes`. `files` is updated to record which inodes are linked.
func checkDirectory(fs *FileSystem, files map[Ino]bool, report *Report) error {
	entries, err := directory.List(fs)
	if err != nil {
		if errors.Is(err, CorruptVolumeErr) {
			report.problemf("directory: %v", err)
			return nil
		}
		return err
	}

	names := map[string]bool{}
	self := false
	for _, entry := range entries {
		if entry.Ino == InoRoot {
			if entry.Name == SelfName {
				self = true
			} else {
				report.problemf("entry `%s` points at the root inode", entry.Name)
			}
			continue
		}
		if names[entry.Name] {
			report.problemf("name `%s` appears more than once", entry.Name)
		}
		names[entry.Name] = true

		linked, ok := files[entry.Ino]
		switch {
		case !ok:
			report.problemf(
				"entry `%s` points at inode `%d`, which isn't a used file",
				entry.Name,
				entry.Ino,
			)
		case linked:
			report.problemf(
				"entry `%s` links inode `%d`, which is already linked",
				entry.Name,
				entry.Ino,
			)
		default:
			files[entry.Ino] = true
			report.Files++
		}
	}
	if !self {
		report.problemf("directory has no self entry")
	}
	for ino := Ino(0); ino < fs.Superblock.TotalInodes; ino++ {
		if linked, ok := files[ino]; ok && !linked {
			report.problemf("inode `%d` is used but no entry links it", ino)
		}
	}
	return nil
}
