// Package commands implements the forecastctl operator CLI.
package commands

import (
	"context"
	"io"

	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	"github.com/spf13/cobra"
)

// Forecaster answers forecast queries against a ready registry.
type Forecaster interface {
	Forecast(category, month string, year int) (float64, error)
	ListCategories() []string
}

// Application is the service behaviour the CLI drives.
type Application interface {
	// Forecaster brings the registry up (cache or retrain) and returns a query service.
	Forecaster(ctx context.Context) (Forecaster, error)
	// Retrain trains from the dataset, replaces the cache and returns the report.
	Retrain(ctx context.Context) (*registry.TrainReport, error)
	// Inspect summarizes the cached blob without training.
	Inspect(ctx context.Context) (*registry.Summary, error)
}

// CLI is the forecastctl command tree.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// New creates the CLI around a.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Operate the rainfall forecast model registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{app: a, rootCmd: rootCmd}
	rootCmd.AddCommand(
		c.newCategoriesCmd(),
		c.newPredictCmd(),
		c.newTrainCmd(),
		c.newInspectCmd(),
	)
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
