package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/PoseKit/config"
	"github.com/AltairaLabs/PoseKit/logger"
	"github.com/AltairaLabs/PoseKit/restclient"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices registered with the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rest := newRESTClient(currentConfig(), nil)
			devices, err := rest.Devices(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tNAME\tSTATUS")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.DeviceID, d.Name, d.Status)
			}
			return w.Flush()
		},
	}
}

// newRESTClient builds the backend client. onUnauthorized, when set, runs
// after the warning on a 401 for a non-demo token.
func newRESTClient(cfg *config.Config, onUnauthorized func()) *restclient.Client {
	return restclient.New(restclient.Config{
		BaseURL: cfg.REST.BaseURL,
		Token:   cfg.REST.Token,
		Timeout: cfg.REST.Timeout,
		OnUnauthorized: func() {
			logger.Warn("backend rejected the token; log in again")
			if onUnauthorized != nil {
				onUnauthorized()
			}
		},
	})
}
