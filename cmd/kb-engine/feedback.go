// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kb-engine/pkg/types"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record and summarize reader feedback",
	Long: `Feedback appends views and helpfulness votes to the feedback log and
keeps each article's counters in step with it.`,
}

var feedbackRecordCmd = &cobra.Command{
	Use:   "record <article-id> <view|helpful|not_helpful>",
	Short: "Record one feedback event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("actor")
		eventType := types.EventType(args[1])
		if !eventType.Valid() {
			return fmt.Errorf("unknown event type %q: use view, helpful, or not_helpful", args[1])
		}

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		tracked, err := e.RecordFeedback(cmd.Context(), args[0], eventType, actor)
		if err != nil {
			return err
		}
		if tracked {
			fmt.Printf("recorded %s for %s\n", eventType, args[0])
		} else {
			fmt.Printf("logged %s for %s (repeat vote, counters unchanged)\n", eventType, args[0])
		}
		return nil
	},
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize feedback over a window of days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.FeedbackStats(cmd.Context(), days)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}

		window := "all time"
		if days > 0 {
			window = fmt.Sprintf("last %d days", days)
		}
		fmt.Printf("Feedback (%s)\n", window)
		fmt.Printf("  views:        %d\n", stats.TotalViews)
		fmt.Printf("  helpful:      %d\n", stats.TotalHelpful)
		fmt.Printf("  not helpful:  %d\n", stats.TotalNotHelpful)
		fmt.Printf("  avg ratio:    %.2f\n", stats.AvgHelpfulnessRatio)

		if len(stats.LowHelpfulnessArticles) > 0 {
			fmt.Println()
			fmt.Fprintf(os.Stdout, "%-20s  %-40s  %6s  %5s\n", "Low helpfulness", "Title", "Ratio", "Votes")
			fmt.Fprintln(os.Stdout, strings.Repeat("-", 77))
			for _, a := range stats.LowHelpfulnessArticles {
				fmt.Fprintf(os.Stdout, "%-20s  %-40s  %6.2f  %5d\n",
					truncate(a.ArticleID, 20), truncate(a.Title, 40), a.HelpfulnessRatio, a.Votes)
			}
		}
		return nil
	},
}

var feedbackRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute article counters by replaying the feedback log",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.RebuildFeedback(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("replayed %d events\n", n)
		return nil
	},
}

func init() {
	feedbackRecordCmd.Flags().String("actor", "", "actor id; votes are deduplicated per actor")
	feedbackStatsCmd.Flags().Int("days", 30, "window in days (0 = whole log)")
	feedbackStatsCmd.Flags().Bool("json", false, "output as JSON")

	feedbackCmd.AddCommand(feedbackRecordCmd)
	feedbackCmd.AddCommand(feedbackStatsCmd)
	feedbackCmd.AddCommand(feedbackRebuildCmd)

	rootCmd.AddCommand(feedbackCmd)
}
