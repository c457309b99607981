package io

import (
	"fmt"

	. "github.com/weberc2/simfs/pkg/types"
)

// Device addresses a `Volume` in whole blocks. Every transfer is
// bounds-checked against the image so that a bad block pointer can't reach
// past the end of the volume.
type Device struct {
	Volume     Volume
	BlockSize  Byte
	BlockCount Block
}

func NewDevice(volume Volume, sb *Superblock) *Device {
	return &Device{
		Volume:     volume,
		BlockSize:  sb.BlockSize,
		BlockCount: sb.TotalBlocks,
	}
}

func (dev *Device) ReadBlock(block Block, p []byte) error {
	if err := dev.checkBlock(block, p); err != nil {
		return fmt.Errorf("reading block: %w", err)
	}
	if err := dev.Volume.ReadAt(Byte(block)*dev.BlockSize, p); err != nil {
		return fmt.Errorf("reading block `%d`: %w", block, err)
	}
	return nil
}

func (dev *Device) WriteBlock(block Block, p []byte) error {
	if err := dev.checkBlock(block, p); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	if err := dev.Volume.WriteAt(Byte(block)*dev.BlockSize, p); err != nil {
		return fmt.Errorf("writing block `%d`: %w", block, err)
	}
	return nil
}

func (dev *Device) ReadAt(offset Byte, p []byte) error {
	if err := dev.checkRange(offset, p); err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	return dev.Volume.ReadAt(offset, p)
}

func (dev *Device) WriteAt(offset Byte, p []byte) error {
	if err := dev.checkRange(offset, p); err != nil {
		return fmt.Errorf("writing: %w", err)
	}
	return dev.Volume.WriteAt(offset, p)
}

func (dev *Device) checkBlock(block Block, p []byte) error {
	if block >= dev.BlockCount {
		return fmt.Errorf(
			"block `%d` out of range (`%d` blocks): %w",
			block,
			dev.BlockCount,
			InvalidArgumentErr,
		)
	}
	if Byte(len(p)) != dev.BlockSize {
		return fmt.Errorf(
			"buffer size `%d` doesn't match block size `%d`: %w",
			len(p),
			dev.BlockSize,
			InvalidArgumentErr,
		)
	}
	return nil
}

func (dev *Device) checkRange(offset Byte, p []byte) error {
	if end := Byte(dev.BlockCount) * dev.BlockSize; offset < 0 ||
		offset+Byte(len(p)) > end {
		return fmt.Errorf(
			"range [`%d`, `%d`) outside image of `%d` bytes: %w",
			offset,
			offset+Byte(len(p)),
			end,
			InvalidArgumentErr,
		)
	}
	return nil
}

var _ BlockDevice = (*Device)(nil)
