package main

import (
	"encoding/csv"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var (
	leadsJobID    string
	leadsLabel    string
	leadsMinScore int
	leadsLimit    int
	leadsFormat   string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List or export stored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Store.ListLeads(cmd.Context(), store.LeadFilter{
			JobID:    leadsJobID,
			Label:    model.QualityLabel(leadsLabel),
			MinScore: leadsMinScore,
			Limit:    leadsLimit,
		})
		if err != nil {
			return err
		}

		switch leadsFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(leads)
		case "csv":
			w := csv.NewWriter(os.Stdout)
			if err := w.WriteAll(leadsCSV(leads)); err != nil {
				return err
			}
			w.Flush()
			return w.Error()
		default:
			printLeadsTable(leads)
			return nil
		}
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsJobID, "job", "", "filter by job id")
	leadsCmd.Flags().StringVar(&leadsLabel, "label", "", "filter by quality label (high|medium|low)")
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "minimum quality score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 0, "maximum leads to return")
	leadsCmd.Flags().StringVarP(&leadsFormat, "format", "f", "table", "output format (table|json|csv)")
	rootCmd.AddCommand(leadsCmd)
}
