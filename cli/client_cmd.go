package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hadaraza/Client-Server-HR/cli/output"
	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/stclient"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type clientOpts struct {
	configPath string
	fileSize   uint64
	tcpConns   int
	udpConns   int
	once       bool
}

func ClientCommand() *cobra.Command {
	var opts clientOpts

	cmd := &cobra.Command{
		Use:          "client",
		Aliases:      []string{"c"},
		Short:        "Run the speed test client",
		Long:         "Listens for server offers, runs parallel TCP/UDP transfers against the first server found, prints statistics, and repeats.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := internal.LoadClientConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load client config: %w", err)
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level in config, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			printer := output.NewPrinter()
			client := stclient.NewClient(cfg)
			client.OnRound = func(stats *stclient.Stats) {
				printer.RenderRoundSummary(stats)
			}

			interactive := !cmd.Flags().Changed("size")
			ranOnce := false
			nextParams := func(ctx context.Context) (stclient.Params, error) {
				if err := ctx.Err(); err != nil {
					return stclient.Params{}, err
				}
				if opts.once && ranOnce {
					return stclient.Params{}, stclient.ErrDone
				}
				ranOnce = true

				if !interactive {
					return stclient.Params{
						FileSize: opts.fileSize,
						TCPConns: opts.tcpConns,
						UDPConns: opts.udpConns,
					}, nil
				}
				return promptParams(cfg)
			}

			printer.Info("starting speed test client, interrupt to exit", nil)
			err = client.Run(ctx, nextParams)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to client config file (TOML)")
	cmd.Flags().Uint64Var(&opts.fileSize, "size", 1<<20, "File size in bytes to request per transfer")
	cmd.Flags().IntVar(&opts.tcpConns, "tcp", 1, "Number of parallel TCP transfers per round")
	cmd.Flags().IntVar(&opts.udpConns, "udp", 1, "Number of parallel UDP transfers per round")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Run a single round and exit")

	return cmd
}

func promptParams(cfg *internal.ClientConfig) (stclient.Params, error) {
	sizeText, err := pterm.DefaultInteractiveTextInput.
		WithDefaultValue(strconv.FormatUint(cfg.FileSize, 10)).
		Show("File size for the speed test (bytes)")
	if err != nil {
		return stclient.Params{}, err
	}
	fileSize, err := strconv.ParseUint(sizeText, 10, 64)
	if err != nil {
		return stclient.Params{}, fmt.Errorf("invalid file size %q: %w", sizeText, err)
	}

	tcpText, err := pterm.DefaultInteractiveTextInput.
		WithDefaultValue(strconv.Itoa(cfg.TCPConns)).
		Show("Number of TCP connections")
	if err != nil {
		return stclient.Params{}, err
	}
	tcpConns, err := strconv.Atoi(tcpText)
	if err != nil || tcpConns < 0 {
		return stclient.Params{}, fmt.Errorf("invalid TCP connection count %q", tcpText)
	}

	udpText, err := pterm.DefaultInteractiveTextInput.
		WithDefaultValue(strconv.Itoa(cfg.UDPConns)).
		Show("Number of UDP connections")
	if err != nil {
		return stclient.Params{}, err
	}
	udpConns, err := strconv.Atoi(udpText)
	if err != nil || udpConns < 0 {
		return stclient.Params{}, fmt.Errorf("invalid UDP connection count %q", udpText)
	}

	return stclient.Params{
		FileSize: fileSize,
		TCPConns: tcpConns,
		UDPConns: udpConns,
	}, nil
}
