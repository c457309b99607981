package types

import "fmt"

// ConstError is an error that can be declared as a constant.
type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	NotMountedErr      ConstError = "volume not mounted"
	MountedErr         ConstError = "volume is mounted"
	InvalidArgumentErr ConstError = "invalid argument"
	NotFoundErr        ConstError = "not found"
	AlreadyExistsErr   ConstError = "already exists"
	VolumeFullErr      ConstError = "volume full"
	VolumeBusyErr      ConstError = "volume in use by another process"
	IOFaultErr         ConstError = "i/o fault"
	CorruptVolumeErr   ConstError = "corrupt volume"
)

// IOError reports a failed read or write against the backing image. It
// matches `IOFaultErr` and unwraps to the underlying host error.
type IOError struct {
	Op     string
	Offset Byte
	Err    error
}

func (err *IOError) Error() string {
	return fmt.Sprintf("%s at offset `%d`: %v", err.Op, err.Offset, err.Err)
}

func (err *IOError) Unwrap() error { return err.Err }

func (err *IOError) Is(target error) bool { return target == IOFaultErr }

// BadMagicError is returned when an image doesn't start with `Magic`.
type BadMagicError struct {
	Found [MagicSize]byte
}

func (err *BadMagicError) Error() string {
	return fmt.Sprintf("bad magic: wanted `%q`; found `%q`", Magic, err.Found)
}

func (err *BadMagicError) Is(target error) bool {
	return target == CorruptVolumeErr
}
