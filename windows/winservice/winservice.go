// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

//go:build windows
// +build windows

// Package winservice runs a long lived process under the Windows service control manager.  It is
// derived from the golang.org/x/sys/windows/svc example service:
//
//	var service = winservice.WinService{
//		Name:        "wmiquery",
//		DisplayName: "WMI Query Service",
//		Start:       serviceStart,
//		Stop:        serviceStop,
//	}
//
// Start is called once the service reports Running and must not block.  Stop is called on a stop
// or shutdown request and must return once the work started by Start has ended.
package winservice

import (
	"fmt"
)

// WinService describes the service and the callbacks the framework drives
type WinService struct {
	Name        string
	DisplayName string
	Description string
	// Args are appended to the executable path when the service is installed
	Args []string
	// UseEventLog records service activity to the application event log
	UseEventLog bool
	Start       func() error
	Stop        func()
}

func (winService *WinService) validate() error {
	if winService.Name == "" {
		return fmt.Errorf("service name not provided")
	}
	if (winService.Start == nil) || (winService.Stop == nil) {
		return fmt.Errorf("WinService struct not initialized properly, StartProvided=%v, StopProvided=%v", (winService.Start != nil), (winService.Stop != nil))
	}
	return nil
}
