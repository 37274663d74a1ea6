// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

// Command wmiquery runs WQL queries against the local WMI service, once from the command line or
// on behalf of HTTP clients.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
