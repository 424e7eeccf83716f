package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

func deadlinesCmd() *cobra.Command {
	var (
		office string
		within int
	)

	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "List open applications by filing deadline",
		Long: `Shows the office's open applications (not yet submitted) with a deadline,
most urgent first, followed by a count per urgency bucket.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			id := generic.OfficeID(office)
			apps, err := store.ListApplications(ctx, id, subsidy.ApplicationFilter{})
			if err != nil {
				return fmt.Errorf("failed to list applications: %w", err)
			}
			clients, err := store.ListClients(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to list clients: %w", err)
			}
			names := make(map[generic.ClientID]string, len(clients))
			for _, c := range clients {
				names[c.ID] = c.Name
			}

			limit := within
			if limit < 0 {
				limit = math.MaxInt32
			}
			now := time.Now().In(cfg.Location)
			return writeDeadlines(cmd.OutOrStdout(), subsidy.DueWithin(apps, now, limit), names,
				subsidy.SummarizeDeadlines(apps, now), now)
		},
	}

	cmd.Flags().StringVar(&office, "office", "", "office ID (required)")
	cmd.Flags().IntVar(&within, "within", -1, "only deadlines at most this many days away (-1 for all)")
	_ = cmd.MarkFlagRequired("office")
	return cmd
}

func writeDeadlines(out io.Writer, views []subsidy.ApplicationView, names map[generic.ClientID]string, summary subsidy.DeadlineSummary, now time.Time) error {
	fmt.Fprintln(out, titleStyle.Render("申請期限一覧 "+generic.DateOf(now).String()))
	if len(views) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("該当する申請はありません"))
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			headerStyle.Render("期限"),
			headerStyle.Render("残り日数"),
			headerStyle.Render("区分"),
			headerStyle.Render("顧問先"),
			headerStyle.Render("対象者"),
			headerStyle.Render("状況"))
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
				v.ApplicationDeadline.String(),
				v.DaysRemaining,
				renderBucket(v),
				names[v.ClientID],
				v.WorkerName,
				v.StatusLabel)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(out)
	for _, b := range subsidy.AllBuckets() {
		fmt.Fprintf(out, "%s %d  ", bucketLabels[b], summary[b])
	}
	_, err := fmt.Fprintln(out)
	return err
}
