package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/seedlabs/relay-listener/internal/api"
	"github.com/seedlabs/relay-listener/internal/model"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		channel string
		minutes int
		output  string
	)

	c := &cobra.Command{
		Use:   "history",
		Short: "Fetch recent channel messages over REST and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, cmd.ErrOrStderr())

			if channel == "" {
				channel = cfg.Relay.Channel
			}
			if minutes <= 0 {
				minutes = cfg.History.IntervalMinutes
			}

			client := api.NewClient(cfg.Relay.RestURL, api.WithLogger(logger))
			items, err := client.GetMessages(cmd.Context(), channel, minutes)
			if err != nil {
				logger.Error("failed to fetch history", "channel", channel, "error", err)
				return err
			}

			return printHistory(cmd, output, items, logger)
		},
	}

	c.Flags().StringVar(&channel, "channel", "", "channel to read (default: relay.channel)")
	c.Flags().IntVar(&minutes, "minutes", 0, "look-back window in minutes (default: history.interval_minutes)")
	c.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return c
}

func printHistory(cmd *cobra.Command, output string, items []model.HistoryItem, logger *slog.Logger) error {
	w := cmd.OutOrStdout()

	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)

	case "table":
		if len(items) == 0 {
			fmt.Fprintln(w, "No messages")
			return nil
		}

		table := tablewriter.NewWriter(w)
		table.Header("Date", "Text")
		for _, item := range items {
			table.Append(model.DateString(item.Date), item.Text)
		}
		if err := table.Render(); err != nil {
			logger.Debug("render table", "error", err)
			return err
		}
		fmt.Fprintf(w, "\nTotal messages: %d\n", len(items))
		return nil
	}

	return fmt.Errorf("unknown output format %q", output)
}
