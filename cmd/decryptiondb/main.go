// Command decryptiondb runs a rendezvous key/value service: oracles PUT
// signed results, validators GET them, suspending on the wait cache when a
// result has not landed yet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	decryptiondb "github.com/zama-ai/decryptiondb"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "decryptiondb",
		Short:         "A rendezvous key/value store for oracle-published, validator-read records.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), decryptiondb.Version())
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var configPath string
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the service in the foreground until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := decryptiondb.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			svc, err := decryptiondb.NewService(cfg)
			if err != nil {
				return fmt.Errorf("decryptiondb: provisioning service: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return svc.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "override the configured listen address")

	return cmd
}
