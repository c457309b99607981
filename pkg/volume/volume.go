// Package volume owns the lifecycle of a disk image: formatting it, mounting
// it and flushing it back on unmount. Every other operation goes through a
// mounted `Volume`.
//
// Bitmaps, inodes and directory blocks are written through to the image as
// they change, but the superblock's free counters live in memory and are
// only written back by `Unmount`. A process that dies while a volume is
// mounted leaves counters on disk that disagree with the bitmaps; `Check`
// reports that. An image may only be mounted by one process at a time,
// which is enforced with an advisory lock for as long as the volume is
// mounted.
package volume

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weberc2/simfs/pkg/directory"
	"github.com/weberc2/simfs/pkg/io"
	. "github.com/weberc2/simfs/pkg/types"
)

// Volume is a handle on one disk image. It isn't safe for concurrent use.
type Volume struct {
	// Path is the host file holding the image.
	Path string

	// Geometry is what `Format` lays the image out with. Mounting ignores it
	// and takes the geometry from the superblock.
	Geometry Geometry

	Logger   logrus.FieldLogger
	TimeFunc func() time.Time

	fs      FileSystem
	file    *os.File
	unlock  func() error
	mounted bool
}

// New returns an unmounted handle on the image at `path` with the default
// geometry. If the handle is garbage collected while still mounted it is
// unmounted, but callers should `Close` it explicitly.
func New(path string) *Volume {
	v := &Volume{
		Path:     path,
		Geometry: DefaultGeometry,
		Logger:   logrus.WithField("image", path),
		TimeFunc: time.Now,
	}
	runtime.SetFinalizer(v, finalize)
	return v
}

func finalize(v *Volume) {
	if v.mounted {
		v.Logger.Warn("volume dropped while mounted; unmounting")
		if err := v.Unmount(); err != nil {
			v.Logger.WithError(err).Warn("unmounting dropped volume")
		}
	}
}

func (v *Volume) Mounted() bool { return v.mounted }

// Format lays out a fresh, empty volume over the image, creating the file
// if necessary. Anything the image held before is destroyed. The volume is
// left unmounted.
func (v *Volume) Format() error {
	if v.mounted {
		return fmt.Errorf("formatting `%s`: %w", v.Path, MountedErr)
	}
	sb, err := NewSuperblock(&v.Geometry, uuid.New())
	if err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}

	file, err := os.OpenFile(v.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}
	defer file.Close()

	unlock, err := io.Lock(v.Path)
	if err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			v.Logger.WithError(err).Warn("releasing image lock")
		}
	}()

	// cutting the file to nothing and growing it back zeroes every region
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}
	if err := file.Truncate(int64(sb.ImageSize())); err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}

	fs := FileSystem{
		Device:     io.NewDevice(io.FileVolume{File: file}, &sb),
		Superblock: sb,
		TimeFunc:   v.TimeFunc,
	}
	if err := directory.InitRoot(&fs); err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}

	// the superblock goes last so that a format that fails part way doesn't
	// leave an image that mounts
	if err := writeSuperblock(&fs); err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("formatting `%s`: %w", v.Path, err)
	}

	v.Logger.WithFields(logrus.Fields{
		"uuid":       fs.Superblock.UUID,
		"blockSize":  fs.Superblock.BlockSize,
		"dataBlocks": fs.Superblock.DataBlocks,
		"inodes":     fs.Superblock.TotalInodes,
	}).Debug("formatted volume")
	return nil
}

// Mount opens the image, validates its superblock and loads it into memory.
// Mounting a mounted volume does nothing.
func (v *Volume) Mount() error {
	if v.mounted {
		return nil
	}

	file, err := os.OpenFile(v.Path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf(
			"mounting `%s`: %w",
			v.Path,
			&IOError{Op: "opening image", Err: err},
		)
	}
	unlock, err := io.Lock(v.Path)
	if err != nil {
		file.Close()
		return fmt.Errorf("mounting `%s`: %w", v.Path, err)
	}

	sb, err := ReadSuperblock(file)
	if err != nil {
		file.Close()
		if unlockErr := unlock(); unlockErr != nil {
			v.Logger.WithError(unlockErr).Warn("releasing image lock")
		}
		return fmt.Errorf("mounting `%s`: %w", v.Path, err)
	}

	v.fs = FileSystem{
		Device:     io.NewDevice(io.FileVolume{File: file}, &sb),
		Superblock: sb,
		TimeFunc:   v.TimeFunc,
	}
	v.file = file
	v.unlock = unlock
	v.mounted = true
	v.Logger.WithFields(logrus.Fields{
		"uuid":       sb.UUID,
		"freeBlocks": sb.FreeBlocks,
		"freeInodes": sb.FreeInodes,
	}).Debug("mounted volume")
	return nil
}

// Unmount writes the in-memory superblock back to the image and closes it.
// Unmounting an unmounted volume does nothing. The image is closed and
// unlocked even if the flush fails.
func (v *Volume) Unmount() error {
	if !v.mounted {
		return nil
	}

	err := writeSuperblock(&v.fs)
	if err == nil {
		err = v.file.Sync()
	}
	if closeErr := v.file.Close(); err == nil {
		err = closeErr
	}
	if unlockErr := v.unlock(); err == nil {
		err = unlockErr
	}

	v.fs = FileSystem{}
	v.file = nil
	v.unlock = nil
	v.mounted = false
	if err != nil {
		return fmt.Errorf("unmounting `%s`: %w", v.Path, err)
	}
	v.Logger.Debug("unmounted volume")
	return nil
}

// Close unmounts the volume. It's meant to be deferred.
func (v *Volume) Close() error { return v.Unmount() }

// Info reports the geometry and usage of the mounted volume.
func (v *Volume) Info() (VolumeInfo, error) {
	if !v.mounted {
		return VolumeInfo{}, fmt.Errorf("volume info: %w", NotMountedErr)
	}
	return v.fs.Superblock.Info(), nil
}

func (v *Volume) fileSystem(op string) (*FileSystem, error) {
	if !v.mounted {
		return nil, fmt.Errorf("%s: %w", op, NotMountedErr)
	}
	return &v.fs, nil
}
