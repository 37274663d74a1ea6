// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

//go:build windows
// +build windows

package main

import (
	"fmt"

	"github.com/hpe-storage/wmi-query-libs/windows/winservice"
	"github.com/spf13/cobra"
)

const serviceName = "wmiquery"

var (
	useEventLog  bool
	debugService bool
)

func init() {
	serviceCmd.PersistentFlags().BoolVar(&useEventLog, "eventlog", false, "record service activity to the application event log")
	serviceRunCmd.Flags().StringVarP(&configPath, "config", "c", "", "JSON configuration file")
	serviceRunCmd.Flags().BoolVar(&debugService, "debug", false, "run in the console instead of under the service control manager")
	serviceInstallCmd.Flags().StringVarP(&configPath, "config", "c", "", "JSON configuration file the service is started with")

	serviceCmd.AddCommand(serviceInstallCmd, serviceRemoveCmd, serviceRunCmd)
	rootCmd.AddCommand(serviceCmd)
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Install, remove or run wmiquery as a Windows service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the HTTP surface as an automatically started service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service := newWinService()
		service.Args = []string{"service", "run"}
		if configPath != "" {
			service.Args = append(service.Args, "--config", configPath)
		}
		if useEventLog {
			service.Args = append(service.Args, "--eventlog")
		}
		return service.InstallService()
	},
}

var serviceRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service := newWinService()
		return service.RemoveService()
	},
}

var serviceRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the HTTP surface under the service control manager",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !debugService {
			isService, err := winservice.IsWindowsService()
			if err != nil {
				return err
			}
			if !isService {
				return fmt.Errorf("not started by the service control manager, use --debug to run in the console")
			}
		}

		service := newWinService()
		var svr *server
		service.Start = func() (err error) {
			svr, err = startServer()
			return err
		}
		service.Stop = func() {
			svr.stop()
		}
		return service.RunService(debugService)
	},
}

func newWinService() *winservice.WinService {
	return &winservice.WinService{
		Name:        serviceName,
		DisplayName: "WMI Query Service",
		Description: "Serves WQL queries against the local WMI service over HTTP",
		UseEventLog: useEventLog,
	}
}
