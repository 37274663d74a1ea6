// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package wmi

import (
	"testing"

	ole "github.com/go-ole/go-ole"
	"github.com/hpe-storage/wmi-query-libs/cerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWin32Process(t *testing.T) {
	s := newFakeSubsystem(processRow("System", 4), processRow("explorer.exe", 5120))
	processes, err := GetWin32Process(WithSubsystem(s))
	require.NoError(t, err)
	require.Len(t, processes, 2)
	assert.Equal(t, "explorer.exe", processes[1].Name)
	assert.Equal(t, `C:\Windows\explorer.exe`, processes[1].ExecutablePath)
	assert.Contains(t, s.lastQuery, "FROM Win32_Process")
}

func TestGetWin32Volume(t *testing.T) {
	s := newFakeSubsystem(newRow(map[string]*fakeProperty{
		"Automount":    scalar(ole.VT_BOOL, int64(VARIANT_TRUE)),
		"BootVolume":   scalar(ole.VT_BOOL, int64(VARIANT_FALSE)),
		"Caption":      bstr(`C:\`),
		"DeviceID":     bstr(`\\?\Volume{4c1b02c1-d990-11dc-99ae-806e6f6e6963}\`),
		"DriveLetter":  bstr("C:"),
		"DriveType":    scalar(ole.VT_I4, 3),
		"FileSystem":   bstr("NTFS"),
		"Label":        &fakeProperty{vt: ole.VT_NULL},
		"Name":         bstr(`C:\`),
		"SystemVolume": scalar(ole.VT_BOOL, int64(VARIANT_FALSE)),

		"BlockSize":                   bstr("4096"),
		"Capacity":                    bstr("107374182400"),
		"FreeSpace":                   bstr("53687091200"),
		"ConfigManagerErrorCode":      &fakeProperty{vt: ole.VT_NULL},
		"PowerManagementCapabilities": numberArray(ole.VT_I4, 1, 4),
	}))
	volumes, err := GetWin32Volume(WithSubsystem(s))
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.True(t, volumes[0].Automount)
	assert.Equal(t, uint32(3), volumes[0].DriveType)
	assert.Equal(t, "", volumes[0].Label)
	assert.Equal(t, "NTFS", volumes[0].FileSystem)
	assert.Equal(t, uint64(4096), volumes[0].BlockSize)
	assert.Equal(t, uint64(107374182400), volumes[0].Capacity)
	assert.Equal(t, uint64(53687091200), volumes[0].FreeSpace)
	assert.Equal(t, uint32(0xFFFFFFFF), volumes[0].ConfigManagerErrorCode)
	assert.Equal(t, []uint16{1, 4}, volumes[0].PowerManagementCapabilities)
	assert.Equal(t, "SELECT * FROM Win32_Volume", s.lastQuery)
}

func TestGetWin32OperatingSystem(t *testing.T) {
	s := newFakeSubsystem(newRow(map[string]*fakeProperty{
		"BuildNumber":    bstr("17763"),
		"Caption":        bstr("Microsoft Windows Server 2019 Datacenter"),
		"CSName":         bstr("HOST01"),
		"LastBootUpTime": bstr("20190601120000.000000-420"),
		"MUILanguages":   stringArray(0, "en-US"),
		"OSArchitecture": bstr("64-bit"),
		"Version":        bstr("10.0.17763"),
	}))
	os, err := GetWin32OperatingSystem(WithSubsystem(s))
	require.NoError(t, err)
	assert.Equal(t, "HOST01", os.CSName)
	assert.Equal(t, []string{"en-US"}, os.MUILanguages)

	_, err = GetWin32OperatingSystem(WithSubsystem(newFakeSubsystem()))
	assert.Equal(t, cerrors.RetrievalFailed, cerrors.CodeOf(err))
}
