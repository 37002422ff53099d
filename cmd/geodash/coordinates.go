package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cryptekbits/GeoDash/internal/geoerr"
)

var coordinatesRadiusKm float64

var coordinatesCmd = &cobra.Command{
	Use:   "coordinates <lat> <lng>",
	Short: "Find cities near a coordinate pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return emit(nil, geoerr.InvalidParameter("lat", "lat must be a number"))
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return emit(nil, geoerr.InvalidParameter("lng", "lng must be a number"))
		}

		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		res, err := w.Radius(cmd.Context(), lat, lng, coordinatesRadiusKm)
		return emit(res, err)
	},
}

func init() {
	coordinatesCmd.Flags().Float64Var(&coordinatesRadiusKm, "radius", 10, "search radius in kilometers")
}
