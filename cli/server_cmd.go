package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/metrics"
	"github.com/hadaraza/Client-Server-HR/pkg/stserver"
	"github.com/spf13/cobra"
)

type serverOpts struct {
	configPath  string
	offerPort   int
	metricsPort int
}

func ServerCommand() *cobra.Command {
	var opts serverOpts

	cmd := &cobra.Command{
		Use:          "server",
		Aliases:      []string{"s", "srv"},
		Short:        "Run the speed test server",
		Long:         "Binds random UDP/TCP service ports, broadcasts offers every second, and serves speed test requests until interrupted.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := internal.LoadServerConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load server config: %w", err)
			}
			if cmd.Flags().Changed("offer-port") {
				cfg.OfferPort = opts.offerPort
			}
			if cmd.Flags().Changed("metrics-port") {
				cfg.MetricsPort = opts.metricsPort
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level in config, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			collector := metrics.NewServerCollector("")
			srv, err := stserver.NewServer(cfg, collector)
			if err != nil {
				return err
			}

			internal.Info("server started", internal.Fields{
				"server_id":  cfg.ServerID,
				"offer_port": cfg.OfferPort,
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to server config file (TOML)")
	cmd.Flags().IntVar(&opts.offerPort, "offer-port", 13117, "UDP port offers are broadcast to")
	cmd.Flags().IntVar(&opts.metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")

	return cmd
}
