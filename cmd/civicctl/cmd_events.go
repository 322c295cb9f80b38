package main

import (
	"fmt"

	"github.com/civicsafe/api/internal/cache"
	"github.com/civicsafe/api/internal/events"
	"github.com/spf13/cobra"
)

var trimMaxLen int64

var trimEventsCmd = &cobra.Command{
	Use:   "trim-events",
	Short: "Cap the length of the report event stream",
	RunE:  runTrimEvents,
}

func init() {
	trimEventsCmd.Flags().Int64Var(&trimMaxLen, "max-len", events.DefaultMaxLen, "entries to keep")
}

func runTrimEvents(cmd *cobra.Command, args []string) error {
	if trimMaxLen < 0 {
		return fmt.Errorf("--max-len must not be negative")
	}

	rc, err := cache.NewRedisCache(cmd.Context(), cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	pub := events.NewRedisPublisher(rc.Client(), cfg.EventsStream)
	before, err := pub.Len(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stream length: %w", err)
	}
	removed, err := pub.Trim(cmd.Context(), trimMaxLen)
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries, removed %d\n", cfg.EventsStream, before, removed)
	return nil
}
