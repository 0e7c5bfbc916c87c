package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/prospector/internal/model"
)

func printJobSummary(job *model.Job) {
	fmt.Printf("job %s  status=%s\n", job.ID, job.Status)
	fmt.Printf("  candidates=%d processed=%d succeeded=%d failed=%d\n",
		job.Counters.CandidatesFound, job.Counters.Processed,
		job.Counters.Succeeded, job.Counters.Failed)
	for _, oc := range job.Sources {
		state := "ok"
		if !oc.Success {
			state = "failed: " + oc.Error
		}
		fmt.Printf("  source %-14s %3d candidates  %s\n", oc.Source, oc.CandidateCount, state)
	}
	for _, w := range job.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func printLeadsTable(leads []model.Lead) {
	if len(leads) == 0 {
		fmt.Println("no leads")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tLABEL\tNAME\tDOMAIN\tEMAIL\tPHONE")
	for _, l := range leads {
		email, phone := "", ""
		if len(l.Emails) > 0 {
			email = l.Emails[0]
		}
		if len(l.Phones) > 0 {
			phone = l.Phones[0]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.QualityScore, l.QualityLabel, l.Name, l.Domain, email, phone)
	}
	_ = tw.Flush()
}

func leadsCSV(leads []model.Lead) [][]string {
	rows := [][]string{{
		"name", "domain", "website", "address", "emails", "phones",
		"quality_score", "quality_label", "source", "crawl_status",
	}}
	for _, l := range leads {
		rows = append(rows, []string{
			l.Name, l.Domain, l.Website, l.Address,
			strings.Join(l.Emails, ";"), strings.Join(l.Phones, ";"),
			fmt.Sprintf("%d", l.QualityScore), string(l.QualityLabel),
			l.Source, string(l.CrawlStatus),
		})
	}
	return rows
}
