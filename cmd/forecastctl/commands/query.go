package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (c *CLI) newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List subdivisions that have trained models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := c.app.Forecaster(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range f.ListCategories() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *CLI) newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "predict <category> <month> <year>",
		Short:   "Forecast rainfall (mm) for a subdivision, month and year",
		Example: `  forecastctl predict "KERALA" JUN 2030`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid year %q: %w", args[2], err)
			}
			f, err := c.app.Forecaster(cmd.Context())
			if err != nil {
				return err
			}
			mm, err := f.Forecast(args[0], args[1], year)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.1f\n", mm)
			return err
		},
	}
}
