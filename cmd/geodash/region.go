package main

import (
	"context"

	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List every country present in the corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		res, err := w.Countries(cmd.Context())
		return emit(res, err)
	},
}

var statesCmd = &cobra.Command{
	Use:   "states <country>",
	Short: "List every state/region in a country",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		res, err := w.States(cmd.Context(), args[0])
		return emit(res, err)
	},
}

var citiesInStateCmd = &cobra.Command{
	Use:   "cities-in-state <state> <country>",
	Short: "List cities within a state/region",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, cleanup, err := openWorker(context.Background())
		if err != nil {
			return emit(nil, err)
		}
		defer cleanup()

		res, err := w.CitiesInState(cmd.Context(), args[0], args[1])
		return emit(res, err)
	},
}
