// Package snapshot copies whole disk images to and from an object store. An
// image is only ever copied while this process holds its lock, so a mounted
// image can't be snapshotted or overwritten.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	simfsio "github.com/weberc2/simfs/pkg/io"
	"github.com/weberc2/simfs/pkg/volume"
	. "github.com/weberc2/simfs/pkg/types"
)

type Snapshots struct {
	Store  ObjectStore
	Bucket string

	// Prefix is prepended to every snapshot name to form its key.
	Prefix string

	Logger logrus.FieldLogger
}

func (s *Snapshots) key(name string) string { return s.Prefix + name }

// Push uploads the image at `path` as snapshot `name`, replacing any
// snapshot of that name.
func (s *Snapshots) Push(path, name string) error {
	if name == "" {
		return fmt.Errorf("pushing snapshot: empty name: %w", InvalidArgumentErr)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}
	defer file.Close()

	unlock, err := simfsio.Lock(path)
	if err != nil {
		return fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}
	defer s.release(unlock)

	sb, err := volume.ReadSuperblock(file)
	if err != nil {
		return fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}

	// the image may carry trailing bytes past the last block; they aren't
	// part of the volume
	image := io.NewSectionReader(file, 0, int64(sb.ImageSize()))
	if err := s.Store.PutObject(s.Bucket, s.key(name), image); err != nil {
		return fmt.Errorf("pushing snapshot `%s`: %w", name, err)
	}

	s.logger().WithFields(logrus.Fields{
		"snapshot": name,
		"uuid":     sb.UUID,
		"bytes":    sb.ImageSize(),
	}).Info("pushed snapshot")
	return nil
}

// Pull downloads snapshot `name` over the image at `path`, creating it if
// necessary. The snapshot is staged and validated first; the image is only
// touched once it's known to hold a volume.
func (s *Snapshots) Pull(name, path string) error {
	body, err := s.Store.GetObject(s.Bucket, s.key(name))
	if err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}
	defer body.Close()

	staged, err := os.CreateTemp(filepath.Dir(path), ".simfs-pull-*")
	if err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}
	defer func() {
		staged.Close()
		os.Remove(staged.Name())
	}()

	if _, err := io.Copy(staged, body); err != nil {
		return fmt.Errorf("pulling snapshot `%s`: downloading: %w", name, err)
	}
	sb, err := volume.ReadSuperblock(staged)
	if err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}

	image, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}
	defer image.Close()

	unlock, err := simfsio.Lock(path)
	if err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}
	defer s.release(unlock)

	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}
	if err := image.Truncate(0); err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}
	if _, err := io.Copy(image, staged); err != nil {
		return fmt.Errorf("pulling snapshot `%s`: writing image: %w", name, err)
	}
	if err := image.Sync(); err != nil {
		return fmt.Errorf("pulling snapshot `%s`: %w", name, err)
	}

	s.logger().WithFields(logrus.Fields{
		"snapshot": name,
		"uuid":     sb.UUID,
		"image":    path,
	}).Info("pulled snapshot")
	return nil
}

// List returns the names of the stored snapshots.
func (s *Snapshots) List() ([]string, error) {
	keys, err := s.Store.ListObjects(s.Bucket, s.Prefix)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = strings.TrimPrefix(key, s.Prefix)
	}
	return names, nil
}

func (s *Snapshots) Delete(name string) error {
	if err := s.Store.DeleteObject(s.Bucket, s.key(name)); err != nil {
		return fmt.Errorf("deleting snapshot `%s`: %w", name, err)
	}
	return nil
}

func (s *Snapshots) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

func (s *Snapshots) release(unlock func() error) {
	if err := unlock(); err != nil {
		s.logger().WithError(err).Warn("releasing image lock")
	}
}
