package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/scorer"
	"github.com/sells-group/prospector/internal/store"
)

var rescoreJobID string

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute quality scores for stored leads",
	Long:  "Re-runs the scorer over persisted signals with the current weights. Useful after tuning scoring config; no re-crawl happens.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		sc := scorer.New(scorer.FromConfig(cfg.Scoring))

		leads, err := env.Store.ListLeads(cmd.Context(), store.LeadFilter{JobID: rescoreJobID})
		if err != nil {
			return err
		}

		changed := 0
		for _, l := range leads {
			score, label := sc.Score(l.Signals)
			if score == l.QualityScore && label == l.QualityLabel {
				continue
			}
			if err := env.Store.UpdateLeadScore(cmd.Context(), l.ID, score, label); err != nil {
				zap.L().Warn("rescore: update failed",
					zap.String("lead_id", l.ID),
					zap.Error(err),
				)
				continue
			}
			changed++
		}

		fmt.Printf("rescored %d of %d leads\n", changed, len(leads))
		return nil
	},
}

func init() {
	rescoreCmd.Flags().StringVar(&rescoreJobID, "job", "", "restrict to one job's leads")
	rootCmd.AddCommand(rescoreCmd)
}
