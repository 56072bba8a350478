package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"checkout-fulfillment/webhook"
)

// signCmd prints a Stripe-Signature header for a captured event so it can be
// replayed against a local server with curl.
func signCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print a webhook signature header for an event payload",
		Example: `  checkoutd sign -f event.json
  cat event.json | checkoutd sign`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Stripe.EndpointSecret == "" {
				return errors.New("stripe.endpoint_secret is required")
			}

			var payload []byte
			if file != "" {
				payload, err = os.ReadFile(file)
			} else {
				payload, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", webhook.SignatureHeader,
				webhook.Sign(payload, cfg.Stripe.EndpointSecret, time.Now()))
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "event payload (default stdin)")
	return cmd
}
