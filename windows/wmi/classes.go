// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
)

// Win32_Process WMI class (subset)
type Win32_Process struct {
	Name            string
	ProcessId       uint32
	ParentProcessId uint32
	ExecutablePath  string
	CommandLine     string
	CreationDate    string
	ThreadCount     uint32
}

// GetWin32Process enumerates this host's Win32_Process objects
func GetWin32Process(opts ...RequestOption) (processes []*Win32_Process, err error) {
	log.Trace(">>>>> GetWin32Process")
	defer log.Trace("<<<<< GetWin32Process")

	err = Query("SELECT Name, ProcessId, ParentProcessId, ExecutablePath, CommandLine, CreationDate, ThreadCount FROM Win32_Process", rootCIMV2, &processes, opts...)
	return processes, err
}

// Win32_Volume WMI class (subset)
type Win32_Volume struct {
	Automount                   bool
	BlockSize                   uint64
	BootVolume                  bool
	Capacity                    uint64
	Caption                     string
	ConfigManagerErrorCode      uint32 `wmi:",nil=0xFFFFFFFF"` // If property not available, use 0xFFFFFFFF
	DeviceID                    string
	DriveLetter                 string
	DriveType                   uint32
	FileSystem                  string
	FreeSpace                   uint64
	Label                       string
	Name                        string
	PowerManagementCapabilities []uint16
	SystemVolume                bool
}

// GetWin32Volume enumerates this host's Win32_Volume objects
func GetWin32Volume(opts ...RequestOption) (volumes []*Win32_Volume, err error) {
	log.Trace(">>>>> GetWin32Volume")
	defer log.Trace("<<<<< GetWin32Volume")

	err = Query("SELECT * FROM Win32_Volume", rootCIMV2, &volumes, opts...)
	return volumes, err
}

// Win32_OperatingSystem WMI class (subset)
type Win32_OperatingSystem struct {
	BuildNumber    string
	Caption        string
	CSName         string
	LastBootUpTime string
	MUILanguages   []string
	OSArchitecture string
	Version        string
}

// GetWin32OperatingSystem returns this host's Win32_OperatingSystem object
func GetWin32OperatingSystem(opts ...RequestOption) (operatingSystem *Win32_OperatingSystem, err error) {
	log.Trace(">>>>> GetWin32OperatingSystem")
	defer log.Trace("<<<<< GetWin32OperatingSystem")

	if err = Query("SELECT BuildNumber, Caption, CSName, LastBootUpTime, MUILanguages, OSArchitecture, Version FROM Win32_OperatingSystem", rootCIMV2, &operatingSystem, opts...); err != nil {
		return nil, err
	}
	if operatingSystem == nil {
		return nil, cerrors.NewWmiError(cerrors.RetrievalFailed, "WMI returned without error, but zero Win32_OperatingSystem objects")
	}
	return operatingSystem, nil
}
