package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
	"github.com/warp/careerup/transfer"
)

func exportCmd() *cobra.Command {
	var (
		office string
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an office as a JSON backup or a CSV of applications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			id := generic.OfficeID(office)
			now := time.Now().In(cfg.Location)
			switch format {
			case "json":
				doc, err := transfer.Export(ctx, store, id, now)
				if err != nil {
					return err
				}
				return transfer.Encode(out, doc)
			case "csv":
				clients, err := store.ListClients(ctx, id)
				if err != nil {
					return err
				}
				apps, err := store.ListApplications(ctx, id, subsidy.ApplicationFilter{})
				if err != nil {
					return err
				}
				return transfer.WriteApplicationsCSV(out, clients, apps, now)
			default:
				return fmt.Errorf("unknown format %q (json, csv)", format)
			}
		},
	}

	cmd.Flags().StringVar(&office, "office", "", "office ID (required)")
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("office")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		office string
		mode   string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "import <backup.json>",
		Short: "Load a JSON backup into an office",
		Long: `Checks every record of the backup, then writes them in one transaction.
With --mode replace the office's existing records are removed first;
merge (the default) upserts by ID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := transfer.ParseMode(mode)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			doc, err := transfer.Decode(f)
			if err != nil {
				return err
			}

			id := generic.OfficeID(office)
			clients, apps, err := doc.Records(id)
			if err != nil {
				return err
			}

			progress := io.Discard
			if !quiet {
				progress = cmd.ErrOrStderr()
			}
			if err := checkRecords(progress, clients, apps); err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Restore(ctx, id, clients, apps, m == transfer.ModeReplace); err != nil {
				return fmt.Errorf("import failed, nothing was written: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d clients, %d applications (%s)\n",
				passStyle.Render("imported"), len(clients), len(apps), m)
			return nil
		},
	}

	cmd.Flags().StringVar(&office, "office", "", "office ID (required)")
	cmd.Flags().StringVar(&mode, "mode", "merge", "merge or replace")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
	_ = cmd.MarkFlagRequired("office")
	return cmd
}

// checkRecords validates every record, reporting all failures at once.
func checkRecords(w io.Writer, clients []subsidy.Client, apps []subsidy.Application) error {
	bar := progressbar.NewOptions(len(clients)+len(apps),
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Checking records...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	var problems []string
	step := func() {
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
	known := make(map[generic.ClientID]bool, len(clients))
	for _, c := range clients {
		c.Normalize()
		if err := c.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("client %s: %v", c.ID, err))
		}
		known[c.ID] = true
		step()
	}
	for _, a := range apps {
		a.Normalize()
		if err := a.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("application %s: %v", a.ID, err))
		}
		if !known[a.ClientID] {
			slog.Debug("application refers to a client outside the backup", "application", a.ID, "client", a.ClientID)
		}
		step()
	}
	_ = bar.Finish()

	if len(problems) > 0 {
		return &generic.ValidationError{Field: "backup", Problems: problems}
	}
	return nil
}
