// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kb-engine/internal/httpapi"
	"github.com/pdiddy/kb-engine/internal/mcpserver"
	"github.com/pdiddy/kb-engine/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the answer, search, and feedback HTTP API",
	Long: `Serve exposes the live operations under /api/v1 (answer, search,
feedback, feedback/stats, articles/{id}/quality, articles/{id}/update-check)
plus /health. It shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		return httpapi.New(e, e.Config().Server).ListenAndServe(ctx)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve search_and_synthesize and record_feedback as MCP tools on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		return mcpserver.Run(ctx, e, version)
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Record feedback events from a Kafka topic",
	Long: `Consume joins the stream.group_id consumer group on stream.topic and
records each JSON feedback event. Malformed messages, unknown articles, and
replayed event ids are skipped; offsets are committed after each event.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		reader, err := stream.NewReader(e.Config().Stream)
		if err != nil {
			return err
		}
		slog.Info("consuming feedback", "topic", e.Config().Stream.Topic, "brokers", e.Config().Stream.Brokers)

		sum, err := stream.New(reader, e).Run(ctx)
		fmt.Printf("%d recorded, %d untracked, %d duplicates, %d malformed, %d unknown article\n",
			sum.Recorded, sum.Untracked, sum.Duplicates, sum.Malformed, sum.Unknown)
		return err
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	consumeCmd.Flags().StringSlice("brokers", nil, "Kafka brokers (default: stream.brokers)")
	consumeCmd.Flags().String("topic", "", "feedback topic (default: stream.topic)")
	_ = viper.BindPFlag("stream.brokers", consumeCmd.Flags().Lookup("brokers"))
	_ = viper.BindPFlag("stream.topic", consumeCmd.Flags().Lookup("topic"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(consumeCmd)
}
