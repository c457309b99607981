package types

import "github.com/google/uuid"

// VolumeInfo is a read-only snapshot of the superblock's geometry and
// counters, plus the sizes derived from them.
type VolumeInfo struct {
	Magic       string    `json:"magic"`
	UUID        uuid.UUID `json:"uuid"`
	BlockSize   Byte      `json:"blockSize"`
	TotalBlocks Block     `json:"totalBlocks"`
	DataBlocks  Block     `json:"dataBlocks"`
	FreeBlocks  Block     `json:"freeBlocks"`
	UsedBlocks  Block     `json:"usedBlocks"`
	TotalInodes Ino       `json:"totalInodes"`
	FreeInodes  Ino       `json:"freeInodes"`
	UsedInodes  Ino       `json:"usedInodes"`
	TotalBytes  Byte      `json:"totalBytes"`
	UsedBytes   Byte      `json:"usedBytes"`
	FreeBytes   Byte      `json:"freeBytes"`
	MaxFileSize Byte      `json:"maxFileSize"`
	MaxFiles    int       `json:"maxFiles"`
}
