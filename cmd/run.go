package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var (
	runLocation    string
	runMaxResults  int
	runSources     []string
	runMaxPages    int
	runFullContent bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run <niche>",
	Short: "Run a discovery job to completion",
	Long:  `Discovers businesses for a niche, crawls and enriches them, and prints the resulting leads. Example: prospector run "dentists" --location "Pittsburgh, PA" --max-results 50`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		query := model.JobQuery{
			Niche:           strings.TrimSpace(args[0]),
			Location:        runLocation,
			MaxResults:      runMaxResults,
			MaxPagesPerSite: runMaxPages,
			Sources:         runSources,
		}
		if runFullContent {
			opts := model.DefaultExtractOptions()
			opts.FullContent = true
			query.Extract = &opts
		}

		job, err := env.Controller.Submit(ctx, query)
		if err != nil {
			return err
		}
		if err := env.Controller.Run(ctx, job.ID); err != nil {
			return err
		}

		final, err := env.Store.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		leads, err := env.Store.ListLeads(ctx, store.LeadFilter{JobID: job.ID})
		if err != nil {
			return err
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"job": final, "leads": leads})
		}

		printJobSummary(final)
		printLeadsTable(leads)

		if final.Status == model.JobStatusFailed {
			zap.L().Error("job failed", zap.String("job_id", final.ID), zap.String("error", final.Error))
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runLocation, "location", "l", "", "geographic focus (e.g. \"Pittsburgh, PA\")")
	runCmd.Flags().IntVarP(&runMaxResults, "max-results", "n", 50, "maximum leads to produce")
	runCmd.Flags().StringSliceVarP(&runSources, "sources", "s", nil, "discovery sources (default from config)")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "pages to crawl per site (default from config)")
	runCmd.Flags().BoolVar(&runFullContent, "full-content", false, "store the crawled page text on each lead")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(runCmd)
}
