// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"strconv"
	"strings"
	"time"
)

// FileTime mirrors the Win32 FILETIME structure: the number of 100-nanosecond intervals since
// January 1, 1601 UTC, split into two 32 bit halves.
type FileTime struct {
	LowDateTime  uint32
	HighDateTime uint32
}

// Offset between the FILETIME epoch (1601-01-01) and the Unix epoch, in 100ns intervals
const fileTimeUnixOffset = 116444736000000000

// parseFileTime splits the decimal text returned by SWbemDateTime.GetFileTime into its halves.
func parseFileTime(text string) (FileTime, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return FileTime{}, err
	}
	return FileTime{LowDateTime: uint32(value), HighDateTime: uint32(value >> 32)}, nil
}

// Uint64 returns the two halves joined into the 64 bit interval count
func (ft FileTime) Uint64() uint64 {
	return uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime)
}

// Time converts the FILETIME into a time.Time in UTC.  A FILETIME produced with the local flag is
// a local wall clock reading and is returned unchanged, labeled UTC.
func (ft FileTime) Time() time.Time {
	intervals := int64(ft.Uint64()) - fileTimeUnixOffset
	return time.Unix(0, intervals*100).UTC()
}
