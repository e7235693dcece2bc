package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func (c *CLI) newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Retrain every model from the dataset and replace the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			report, err := c.app.Retrain(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().Bool("json", false, "Print the full training report as JSON")
	return cmd
}

func (c *CLI) newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe the cached registry blob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			summary, err := c.app.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			return writeSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().Bool("json", false, "Print the summary as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, r *registry.TrainReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run id\t%s\n", r.RunID)
	if r.Seed != nil {
		fmt.Fprintf(tw, "seed\t%d\n", *r.Seed)
	}
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(tw, "models\t%d\n", len(r.Evaluations))
	fmt.Fprintf(tw, "skipped\t%d\n", len(r.Skipped))
	fmt.Fprintf(tw, "failed\t%d\n", len(r.Failed))
	if len(r.Evaluations) > 0 {
		var mae, rmse float64
		for _, ev := range r.Evaluations {
			mae += ev.MAE
			rmse += ev.RMSE
		}
		n := float64(len(r.Evaluations))
		fmt.Fprintf(tw, "mean MAE\t%.2f\n", mae/n)
		fmt.Fprintf(tw, "mean RMSE\t%.2f\n", rmse/n)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(tw, "failed %s\t%s\n", f.Key, f.Error)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, s *registry.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "format\t%s v%d\n", s.Header.Format, s.Header.Version)
	fmt.Fprintf(tw, "created\t%s\n", s.Header.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "fingerprint\t%s\n", s.Header.Fingerprint)
	fmt.Fprintf(tw, "size\t%d bytes\n", s.Header.Size)
	fmt.Fprintf(tw, "categories\t%d\n", len(s.Categories))
	fmt.Fprintf(tw, "models\t%d\n", s.Models)
	fmt.Fprintf(tw, "tree nodes\t%d\n", s.Nodes)
	for _, m := range domain.Months {
		if n, ok := s.PerMonth[m.String()]; ok {
			fmt.Fprintf(tw, "  %s\t%d\n", m, n)
		}
	}
	if missing := missingMonths(s); len(missing) > 0 {
		fmt.Fprintf(tw, "months without models\t%v\n", missing)
	}
	return tw.Flush()
}

func missingMonths(s *registry.Summary) []string {
	var out []string
	for _, m := range domain.Months {
		if s.PerMonth[m.String()] == 0 {
			out = append(out, m.String())
		}
	}
	return out
}
