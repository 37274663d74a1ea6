// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package main

import (
	"github.com/hpe-storage/wmi-query-libs/windows/wmi"
	"github.com/spf13/cobra"
)

var (
	namespace string
	logLevel  string
	logFile   string

	// requestOptions are applied to every WMI request the commands issue
	requestOptions []wmi.RequestOption
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", `WMI namespace (default ROOT\CIMV2)`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace, debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path")
}

var rootCmd = &cobra.Command{
	Use:           "wmiquery",
	Short:         "Run WQL queries against the local WMI service",
	SilenceUsage:  true,
	SilenceErrors: true,
}
