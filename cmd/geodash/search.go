package main

import (
	"context"

	"github.com/spf13/cobra"

	geodash "github.com/cryptekbits/GeoDash"
)

var (
	searchLimit   int
	searchCountry string
	searchUserLat float64
	searchUserLng float64
	searchHasUser bool
	searchUserCC  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cities by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		p := geodash.SearchParams{
			Query:         args[0],
			Limit:         searchLimit,
			CountryFilter: searchCountry,
			UserCountry:   searchUserCC,
		}
		if searchHasUser {
			p.UserLat = &searchUserLat
			p.UserLng = &searchUserLng
		}
		res, err := w.Search(cmd.Context(), p)
		return emit(res, err)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (0 = default)")
	searchCmd.Flags().StringVar(&searchCountry, "country", "", "restrict to an ISO-3166-1 alpha-2 country code")
	searchCmd.Flags().StringVar(&searchUserCC, "user-country", "", "bias ranking toward this country code")
	searchCmd.Flags().Float64Var(&searchUserLat, "user-lat", 0, "bias ranking toward this latitude")
	searchCmd.Flags().Float64Var(&searchUserLng, "user-lng", 0, "bias ranking toward this longitude")
	searchCmd.Flags().BoolVar(&searchHasUser, "with-location", false, "set when --user-lat/--user-lng are provided")
}
