package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/doulaboard/internal/cli"
	"github.com/example/doulaboard/internal/version"
	"github.com/example/doulaboard/internal/wire"
)

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:     "doula",
		Short:   "doula - client dashboard tools for doula practices",
		Version: version.String(),
		Long: `doula manages the client leads behind a doula practice dashboard.
It stores clients locally, serves them over HTTP, and resolves profile
deep links the way the dashboard does.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				wire.SetConfigDir(configDir)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "dir", "", "Directory containing .doula/config.yaml (default: current directory)")

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ClientCmd())
	rootCmd.AddCommand(cli.OpenCmd())
	rootCmd.AddCommand(cli.BrowseCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	err := rootCmd.ExecuteContext(context.Background())
	wire.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
