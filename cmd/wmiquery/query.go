// (c) Copyright 2019 Hewlett Packard Enterprise Development LP

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hpe-storage/wmi-query-libs/cerrors"
	log "github.com/hpe-storage/wmi-query-libs/logger"
	"github.com/hpe-storage/wmi-query-libs/windows/wmi"
	"github.com/spf13/cobra"
)

var (
	properties []string
	describe   bool
)

func init() {
	queryCmd.Flags().StringSliceVarP(&properties, "property", "p", nil, "property to return (repeatable, default all)")
	queryCmd.Flags().BoolVar(&describe, "describe", false, "print the VARTYPE and value of each property instead of JSON")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [wql]",
	Short: "Run one WQL query and print the rows as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := log.LogParams{Level: logLevel}
		if _, err := log.InitLogging(logFile, &params, false, false); err != nil {
			return err
		}
		defer wmi.Cleanup()

		return runQuery(cmd.OutOrStdout(), strings.Join(args, " "), namespace, properties, describe)
	},
}

// runQuery prints every row of the query.  Partial results are printed before the error is
// returned.
func runQuery(out io.Writer, query, namespace string, properties []string, describe bool) error {
	log.Tracef(">>>>> runQuery, query=%v", query)
	defer log.Trace("<<<<< runQuery")

	request := wmi.NewRequest(query, namespace, requestOptions...)
	defer request.Close()

	status := request.Status()
	if status != nil && !request.IsPartial() {
		return status
	}

	if describe {
		for i, item := range request.Results() {
			if err := describeRow(out, i, item, properties); err != nil {
				return err
			}
		}
		return status
	}

	rows := make([]map[string]interface{}, 0, len(request.Results()))
	for _, item := range request.Results() {
		row, err := item.Properties(properties...)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(rows); err != nil {
		return cerrors.NewWmiError(cerrors.Internal, err)
	}
	return status
}

func describeRow(out io.Writer, index int, item *wmi.ResultItem, properties []string) error {
	names := properties
	if len(names) == 0 {
		var err error
		if names, err = item.Names(); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "[%d]\n", index)
	for _, name := range names {
		description, err := item.Describe(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "    %s = %s\n", name, description)
	}
	return nil
}
