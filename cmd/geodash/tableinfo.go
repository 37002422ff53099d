package main

import (
	"context"

	"github.com/spf13/cobra"
)

type tableInfo struct {
	Backend  string `json:"backend"`
	RowCount int    `json:"row_count"`
}

var tableInfoCmd = &cobra.Command{
	Use:   "table-info",
	Short: "Report row count and backend kind, per /api/status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		n, backend, err := w.RowCount(cmd.Context())
		if err != nil {
			return emit(nil, err)
		}
		return emit(tableInfo{Backend: backend, RowCount: n}, nil)
	},
}
