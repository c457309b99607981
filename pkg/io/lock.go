package io

import (
	"fmt"

	"github.com/gofrs/flock"
	. "github.com/weberc2/simfs/pkg/types"
)

// Lock takes an exclusive advisory lock on the image at `path` so that only
// one process mounts it at a time. It doesn't wait: if the lock is held
// elsewhere it fails with `VolumeBusyErr`. The returned function releases it.
func Lock(path string) (func() error, error) {
	l := flock.NewFlock(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking image `%s`: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("locking image `%s`: %w", path, VolumeBusyErr)
	}
	return l.Unlock, nil
}
