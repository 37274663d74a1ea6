// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

package winservice

import (
	"fmt"

	log "github.com/hpe-storage/wmi-query-libs/logger"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/debug"
	"golang.org/x/sys/windows/svc/eventlog"
)

// Service specific exit code reported when Start fails
const exitCodeStartFailed = 1

// IsWindowsService reports whether the process was started by the service control manager
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

// handler adapts a WinService to svc.Handler
type handler struct {
	winService *WinService
	elog       debug.Log
}

func (h *handler) logInfo(msg string) {
	if h.elog != nil {
		h.elog.Info(1, msg)
	}
	log.Info(msg)
}

func (h *handler) logError(msg string) {
	if h.elog != nil {
		h.elog.Error(1, msg)
	}
	log.Error(msg)
}

// Execute is the thread executing the service and receiving control events
func (h *handler) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown
	changes <- svc.Status{State: svc.StartPending}

	if err := h.winService.Start(); err != nil {
		h.logError(fmt.Sprintf("%s service failed to start: %v", h.winService.Name, err))
		return true, exitCodeStartFailed
	}
	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}

	for c := range r {
		switch c.Cmd {
		case svc.Interrogate:
			changes <- c.CurrentStatus
		case svc.Stop, svc.Shutdown:
			log.Infof("Stop/shutdown signal received, c.Cmd=%v", c.Cmd)
			changes <- svc.Status{State: svc.StopPending}
			h.winService.Stop()
			return false, 0
		default:
			h.logError(fmt.Sprintf("unexpected control request #%d", c))
		}
	}
	return false, 0
}

// RunService runs the service until it is stopped.  With isDebug set the service runs in the
// console and stops on Ctrl+C.
func (winService *WinService) RunService(isDebug bool) error {
	if err := winService.validate(); err != nil {
		log.Error(err)
		return err
	}

	h := &handler{winService: winService}
	if winService.UseEventLog {
		if isDebug {
			h.elog = debug.New(winService.Name)
		} else {
			elog, err := eventlog.Open(winService.Name)
			if err != nil {
				return err
			}
			h.elog = elog
		}
		defer h.elog.Close()
	}

	h.logInfo(fmt.Sprintf("starting %s service", winService.Name))
	run := svc.Run
	if isDebug {
		run = debug.Run
	}
	if err := run(winService.Name, h); err != nil {
		h.logError(fmt.Sprintf("%s service failed: %v", winService.Name, err))
		return err
	}
	h.logInfo(fmt.Sprintf("%s service stopped", winService.Name))
	return nil
}
