package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"tour-video-backend/internal/services"
)

func newOrderStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "order-status <order_id>",
		Short: "Show the aggregate status of an order and its current videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.status.OrderView(cmd.Context(), uint(orderID))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order %d (%s): %s\n", view.Order.ID, view.Order.Package, view.Status)
			rows := make([][]string, 0, len(view.Images))
			for _, iv := range view.Images {
				row := []string{strconv.FormatUint(uint64(iv.Image.ID), 10), iv.Image.Filename, "-", "queued", ""}
				if iv.Video != nil {
					row[2] = strconv.Itoa(iv.Video.Iteration)
					row[3] = string(iv.Video.Status)
					if iv.Video.VideoURL != nil {
						row[4] = *iv.Video.VideoURL
					}
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, renderTable([]string{"Image", "File", "Iteration", "Status", "Video URL"}, rows, 1, 3))
			return nil
		},
	}
}

func newAdminFeedCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "admin-feed",
		Short: "Show recent videos with counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			feed, err := a.admin.Feed(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Users: %d  Orders: %d  Videos: %d\n", feed.Totals.Users, feed.Totals.Orders, feed.Totals.Videos)

			statuses := make([]string, 0, len(feed.Counts))
			for status := range feed.Counts {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			counts := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				counts = append(counts, []string{status, strconv.FormatInt(feed.Counts[status], 10)})
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Videos"}, counts, 2))

			videos := feed.Videos
			if limit > 0 && len(videos) > limit {
				videos = videos[:limit]
			}
			rows := make([][]string, 0, len(videos))
			for _, v := range videos {
				rows = append(rows, []string{
					strconv.FormatUint(uint64(v.ID), 10),
					strconv.FormatUint(uint64(v.OrderID), 10),
					v.Filename,
					strconv.Itoa(v.Iteration),
					v.Status,
					v.UserCode,
					v.CreatedAt.Format(time.RFC3339),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Video", "Order", "File", "Iteration", "Status", "User", "Created"}, rows, 1, 2, 4))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of videos to list")
	return cmd
}

func newPollCommand(ctx *commandContext) *cobra.Command {
	var (
		interval  time.Duration
		maxChecks int
	)
	cmd := &cobra.Command{
		Use:   "poll <job_id>",
		Short: "Poll a generation job until it finishes or checks run out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if interval <= 0 {
				interval = cfg.RunwayPollInterval
			}
			if maxChecks <= 0 {
				maxChecks = cfg.RunwayPollChecks
			}

			status, err := a.reconciler.Poll(cmd.Context(), args[0], maxChecks, interval)
			if errors.Is(err, services.ErrPollInProgress) {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is already being polled\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", args[0], status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between checks (default from config)")
	cmd.Flags().IntVar(&maxChecks, "max-checks", 0, "Maximum number of checks (default from config)")
	return cmd
}
