// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

//go:build !windows
// +build !windows

package wmi

import (
	"runtime"

	"github.com/hpe-storage/wmi-query-libs/cerrors"
)

// unsupportedSubsystem stands in for WMI on hosts that don't have it
type unsupportedSubsystem struct{}

func newPlatformSubsystem() Subsystem {
	return unsupportedSubsystem{}
}

func errNotSupported() error {
	return cerrors.NewWmiErrorf(cerrors.NotSupported, "WMI is not available on %v", runtime.GOOS)
}

func (unsupportedSubsystem) InitializeSecurity() error {
	return nil
}

func (unsupportedSubsystem) NewLocator() (Locator, error) {
	return nil, errNotSupported()
}

func (unsupportedSubsystem) NewDateTime() (DateTimeInterpreter, error) {
	return nil, errNotSupported()
}

// Cleanup is a no-op on hosts without COM
func Cleanup() {}
