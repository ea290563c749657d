package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stemforge/internal/logging"
	"stemforge/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			service := notifications.NewService(cfg, nil, logger)
			defer service.Close()

			out := cmd.OutOrStdout()
			if service.Len() == 0 {
				fmt.Fprintln(out, "No notification sinks configured")
				return nil
			}
			event := notifications.Event{Type: notifications.EventTest, Time: time.Now()}
			if err := service.Publish(cmd.Context(), event); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(out, "Test notification sent to %d sink(s)\n", service.Len())
			return nil
		},
	}
}
