package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "speedtest",
		Short: "speedtest measures LAN throughput and packet loss",
		Long: `speedtest is a client/server tool for measuring network throughput and
packet loss. The server broadcasts offers over UDP; clients discover it,
run parallel TCP and UDP transfers against it, and report per-round
statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(ServerCommand())
	rootCmd.AddCommand(ClientCommand())

	return rootCmd
}
