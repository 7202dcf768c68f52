package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/doulaboard/internal/config"
	"github.com/example/doulaboard/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var apiBaseURL string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the doula config and database",
		Long: `Write .doula/config.yaml in the current directory and create the client
database with the required schema.

Examples:
  doula init
  doula init --api https://dashboard.example.com/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get working directory: %w", err)
				}
				dir = wd
			}

			cfg := &config.Config{APIBaseURL: apiBaseURL, DBPath: dbPath}
			if _, err := os.Stat(config.Path(dir)); err == nil {
				existing, err := config.LoadConfig(dir)
				if err != nil {
					return err
				}
				cfg = existing
				if apiBaseURL != "" {
					cfg.APIBaseURL = apiBaseURL
					cfg.Lookup = config.LookupREST
				}
				if dbPath != "" {
					cfg.DBPath = dbPath
				}
			} else if cfg.DBPath == "" {
				if cfg.DBPath, err = config.DefaultDBPath(); err != nil {
					return err
				}
			}

			if err := config.SaveConfig(dir, cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Config written to %s\n", config.Path(dir))

			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer conn.Close()

			version, err := db.SchemaVersion(conn)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			fmt.Fprintf(out, "✓ Database ready at %s (schema v%d)\n", cfg.DBPath, version)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  doula client import leads.json")
			fmt.Fprintln(out, "  doula open <client-id>")

			return nil
		},
	}

	cmd.Flags().StringVar(&apiBaseURL, "api", "", "Clients API base URL (enables REST lookup)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path (default ~/.doula/doula.db)")

	return cmd
}
