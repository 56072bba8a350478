package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Send one batch of pending notifications and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			d, err := wire(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.store.Close()

			sent, err := d.dispatcher.DispatchPending(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("dispatch finished", "sent", sent)
			return nil
		},
	}
}
