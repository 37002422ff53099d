package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cryptekbits/GeoDash/internal/geoerr"
)

var cityCmd = &cobra.Command{
	Use:   "city <id>",
	Short: "Look up a city by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, parseErr := strconv.ParseInt(args[0], 10, 32)
		if parseErr != nil {
			return emit(nil, geoerr.InvalidParameter("id", "id must be an integer"))
		}
		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		c, err := w.City(cmd.Context(), int32(id))
		return emit(c, err)
	},
}
