// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

package winservice

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/hpe-storage/wmi-query-libs/logger"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// Restart after a crash, backing off, and forget the failures after a day
var defaultRecoveryActions = []mgr.RecoveryAction{
	{Type: mgr.ServiceRestart, Delay: 5 * time.Second},
	{Type: mgr.ServiceRestart, Delay: 30 * time.Second},
	{Type: mgr.ServiceRestart, Delay: 5 * time.Minute},
}

const recoveryResetPeriod = 24 * 60 * 60 // seconds

func exePath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", err
	}
	p, err = filepath.Abs(p)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if fi.Mode().IsDir() {
		return "", fmt.Errorf("%s is directory", p)
	}
	return p, nil
}

// InstallService registers the running executable as an automatically started service that is
// restarted after a crash.
func (winService *WinService) InstallService() error {
	log.Tracef(">>>>> InstallService, name=%v", winService.Name)
	defer log.Trace("<<<<< InstallService")

	if winService.Name == "" {
		return fmt.Errorf("service name not provided")
	}
	exepath, err := exePath()
	if err != nil {
		return err
	}
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := m.OpenService(winService.Name)
	if err == nil {
		s.Close()
		return fmt.Errorf("service %s already exists", winService.Name)
	}
	config := mgr.Config{
		DisplayName: winService.DisplayName,
		Description: winService.Description,
		StartType:   mgr.StartAutomatic,
	}
	s, err = m.CreateService(winService.Name, exepath, config, winService.Args...)
	if err != nil {
		return err
	}
	defer s.Close()

	if winService.UseEventLog {
		err = eventlog.InstallAsEventCreate(winService.Name, eventlog.Error|eventlog.Warning|eventlog.Info)
		if err != nil {
			s.Delete()
			return fmt.Errorf("SetupEventLogSource() failed: %s", err)
		}
	}
	return s.SetRecoveryActions(defaultRecoveryActions, recoveryResetPeriod)
}

// RemoveService is used to uninstall the service
func (winService *WinService) RemoveService() error {
	log.Tracef(">>>>> RemoveService, name=%v", winService.Name)
	defer log.Trace("<<<<< RemoveService")

	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()
	s, err := m.OpenService(winService.Name)
	if err != nil {
		return fmt.Errorf("service %s is not installed", winService.Name)
	}
	defer s.Close()
	if err = s.Delete(); err != nil {
		return err
	}

	if winService.UseEventLog {
		if err = eventlog.Remove(winService.Name); err != nil {
			return fmt.Errorf("RemoveEventLogSource() failed: %s", err)
		}
	}
	return nil
}
